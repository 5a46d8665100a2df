package storage

import (
	"context"
	"database/sql"
	"time"
)

type RankUpRepo struct{ db *sql.DB }

func NewRankUpRepo(db *sql.DB) *RankUpRepo { return &RankUpRepo{db: db} }

func (r *RankUpRepo) Record(ctx context.Context, e RankUpEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rank_up_events (guild_id, member_id, kind, role_id, required_points)
VALUES ($1,$2,$3,$4,$5)
`, e.GuildID, e.MemberID, e.Kind, e.RoleID, e.RequiredPoints)
	return err
}

// Recent devuelve los últimos rank-ups del miembro (más nuevo primero).
func (r *RankUpRepo) Recent(ctx context.Context, guildID, memberID string, limit int) ([]RankUpEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, guild_id, member_id, kind, role_id, required_points, created_at
  FROM rank_up_events
 WHERE guild_id = $1 AND member_id = $2
 ORDER BY created_at DESC, id DESC
 LIMIT $3
`, guildID, memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RankUpEvent
	for rows.Next() {
		var e RankUpEvent
		if err := rows.Scan(&e.ID, &e.GuildID, &e.MemberID, &e.Kind, &e.RoleID, &e.RequiredPoints, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *RankUpRepo) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rank_up_events WHERE created_at < $1`, time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
