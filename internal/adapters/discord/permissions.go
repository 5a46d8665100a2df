package discord

import "github.com/bwmarrin/discordgo"

// isAdmin: owner del guild, bit Administrator o alguno de los roles configurados.
func isAdmin(m *discordgo.Member, ownerID string, roles []*discordgo.Role, adminRoleIDs []string) bool {
	if m == nil || m.User == nil {
		return false
	}
	if m.User.ID == ownerID {
		return true
	}
	if m.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}

	has := make(map[string]struct{}, len(m.Roles))
	for _, rid := range m.Roles {
		has[rid] = struct{}{}
	}
	for _, ro := range roles {
		if _, ok := has[ro.ID]; ok && ro.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	for _, want := range adminRoleIDs {
		if _, ok := has[want]; ok {
			return true
		}
	}
	return false
}

func (r *Router) requireAdminOrRoles(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	var ownerID string
	var roles []*discordgo.Role
	if g, _ := s.State.Guild(ic.GuildID); g != nil {
		ownerID, roles = g.OwnerID, g.Roles
	}
	if len(roles) == 0 {
		roles, _ = s.GuildRoles(ic.GuildID)
	}
	return isAdmin(ic.Member, ownerID, roles, r.adminRoleIDs)
}
