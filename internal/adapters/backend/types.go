package backend

// ActivityPatch: campos opcionales de POST activity-tracking/{kind}/options.
type ActivityPatch struct {
	Enabled  *bool `json:"enabled,omitempty"`
	Points   *int  `json:"points,omitempty"`
	Cooldown *int  `json:"cooldown,omitempty"`
}

func (p ActivityPatch) Empty() bool {
	return p.Enabled == nil && p.Points == nil && p.Cooldown == nil
}

type ProfilePatch struct {
	CardStyle *int `json:"card_style,omitempty"`
}

func (p ProfilePatch) Empty() bool { return p.CardStyle == nil }

type VoiceRoomPatch struct {
	CurrentOwnerID *string `json:"current_owner_id,omitempty"`
	IsLocked       *bool   `json:"is_locked,omitempty"`
}

func (p VoiceRoomPatch) Empty() bool { return p.CurrentOwnerID == nil && p.IsLocked == nil }

// SpawnRoomOptions para crear/modificar un template.
type SpawnRoomOptions struct {
	UserLimit      *int  `json:"user_limit,omitempty"`
	CanRename      *bool `json:"can_rename,omitempty"`
	CanLock        *bool `json:"can_lock,omitempty"`
	CanAdjustLimit *bool `json:"can_adjust_limit,omitempty"`
}

func (o SpawnRoomOptions) Empty() bool {
	return o.UserLimit == nil && o.CanRename == nil && o.CanLock == nil && o.CanAdjustLimit == nil
}

type spawnRoomBody struct {
	CreatorID string `json:"creator_id"`
}

type successDTO struct {
	Success bool `json:"success"`
}
