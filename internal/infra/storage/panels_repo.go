package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

type PanelRepo struct{ db *sql.DB }

func NewPanelRepo(db *sql.DB) *PanelRepo { return &PanelRepo{db: db} }

func (r *PanelRepo) Get(ctx context.Context, channelID string) (RoomPanel, error) {
	var p RoomPanel
	err := r.db.QueryRowContext(ctx, `
SELECT channel_id, guild_id, message_id, created_at, updated_at
  FROM room_panels
 WHERE channel_id = $1
`, channelID).Scan(&p.ChannelID, &p.GuildID, &p.MessageID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RoomPanel{}, ErrNotFound
	}
	return p, err
}

func (r *PanelRepo) Upsert(ctx context.Context, p RoomPanel) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO room_panels (channel_id, guild_id, message_id)
VALUES ($1,$2,$3)
ON CONFLICT (channel_id) DO UPDATE SET
  message_id = EXCLUDED.message_id,
  updated_at = now()
`, p.ChannelID, p.GuildID, p.MessageID)
	return err
}

func (r *PanelRepo) Delete(ctx context.Context, channelID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM room_panels WHERE channel_id = $1`, channelID)
	return err
}

func (r *PanelRepo) List(ctx context.Context) ([]RoomPanel, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT channel_id, guild_id, message_id, created_at, updated_at
  FROM room_panels
 ORDER BY created_at
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoomPanel
	for rows.Next() {
		var p RoomPanel
		if err := rows.Scan(&p.ChannelID, &p.GuildID, &p.MessageID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteMany borra en un solo statement (ANY($1)).
func (r *PanelRepo) DeleteMany(ctx context.Context, channelIDs []string) (int64, error) {
	if len(channelIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM room_panels WHERE channel_id = ANY($1)`, pq.Array(channelIDs))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PruneOlderThan lo usa el janitor para paneles huérfanos.
func (r *PanelRepo) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM room_panels WHERE updated_at < $1`, time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
