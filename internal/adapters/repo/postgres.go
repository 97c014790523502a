package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

// Postgres хранит объявления и журнал участия.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.RaidRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const schema = `
CREATE TABLE IF NOT EXISTS raids (
	message_id      text PRIMARY KEY,
	channel_id      text NOT NULL,
	guild_id        text NOT NULL DEFAULT '',
	init_message_id text NOT NULL DEFAULT '',
	author_id       text NOT NULL DEFAULT '',
	gym_id          text NOT NULL,
	start_time      timestamptz NOT NULL,
	raid_level      int NOT NULL DEFAULT 0,
	mon_id          int,
	mon_form        int,
	raid_start      timestamptz,
	raid_end        timestamptz,
	role_id         text NOT NULL DEFAULT '',
	created_at      timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS raids_start_time_idx ON raids (start_time);
CREATE TABLE IF NOT EXISTS raid_members (
	message_id text NOT NULL REFERENCES raids (message_id) ON DELETE CASCADE,
	user_id    text NOT NULL,
	amount     int NOT NULL DEFAULT 0,
	is_late    bool NOT NULL DEFAULT false,
	is_remote  bool NOT NULL DEFAULT false,
	PRIMARY KEY (message_id, user_id)
);
`

// EnsureSchema создаёт таблицы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, schema)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "raids", start, err)
	if err != nil {
		return fmt.Errorf("создание схемы: %w", err)
	}
	return nil
}

// UpsertRaid сохраняет снимок объявления.
func (p *Postgres) UpsertRaid(ctx context.Context, rec domain.RaidRecord) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var monID, monForm sql.NullInt32
	if rec.BossID != 0 {
		monID = sql.NullInt32{Int32: int32(rec.BossID), Valid: true}
		monForm = sql.NullInt32{Int32: int32(rec.BossForm), Valid: true}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO raids (message_id, channel_id, guild_id, init_message_id, author_id, gym_id, start_time, raid_level, mon_id, mon_form, raid_start, raid_end, role_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (message_id) DO UPDATE SET raid_level = EXCLUDED.raid_level, mon_id = EXCLUDED.mon_id, mon_form = EXCLUDED.mon_form,
	raid_start = EXCLUDED.raid_start, raid_end = EXCLUDED.raid_end, role_id = EXCLUDED.role_id
`, rec.MessageID, rec.ChannelID, rec.GuildID, rec.InitMessageID, rec.AuthorID, rec.LocationID, rec.Start.UTC(), rec.Level,
		monID, monForm, rec.RaidStart, rec.RaidEnd, rec.GroupID)
	metrics.ObserveNetworkRequest("postgres", "raids_upsert", "raids", start, err)
	if err != nil {
		return fmt.Errorf("сохранение рейда: %w", err)
	}
	return nil
}

// DeleteRaid удаляет объявление вместе с участниками.
func (p *Postgres) DeleteRaid(ctx context.Context, messageID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "raids", start, err)
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start = time.Now()
	_, err = tx.Exec(ctx, `DELETE FROM raid_members WHERE message_id = $1`, messageID)
	metrics.ObserveNetworkRequest("postgres", "raid_members_delete", "raid_members", start, err)
	if err != nil {
		return fmt.Errorf("удаление участников: %w", err)
	}
	start = time.Now()
	_, err = tx.Exec(ctx, `DELETE FROM raids WHERE message_id = $1`, messageID)
	metrics.ObserveNetworkRequest("postgres", "raids_delete", "raids", start, err)
	if err != nil {
		return fmt.Errorf("удаление рейда: %w", err)
	}
	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "raids", start, err)
	return err
}

// UpsertParticipant сохраняет запись журнала.
func (p *Postgres) UpsertParticipant(ctx context.Context, messageID string, part domain.Participant) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO raid_members (message_id, user_id, amount, is_late, is_remote)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (message_id, user_id) DO UPDATE SET amount = EXCLUDED.amount, is_late = EXCLUDED.is_late, is_remote = EXCLUDED.is_remote
`, messageID, part.UserID, part.Amount, part.Late, part.Remote)
	metrics.ObserveNetworkRequest("postgres", "raid_members_upsert", "raid_members", start, err)
	if err != nil {
		return fmt.Errorf("сохранение участника: %w", err)
	}
	return nil
}

// ListUpcoming возвращает объявления, начинающиеся после after.
func (p *Postgres) ListUpcoming(ctx context.Context, after time.Time) ([]domain.RaidRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT message_id, channel_id, guild_id, init_message_id, author_id, gym_id, start_time, raid_level, mon_id, mon_form, raid_start, raid_end, role_id
FROM raids
WHERE start_time > $1
ORDER BY start_time
`, after.UTC())
	metrics.ObserveNetworkRequest("postgres", "raids_list_upcoming", "raids", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка рейдов: %w", err)
	}
	defer rows.Close()

	var out []domain.RaidRecord
	for rows.Next() {
		var (
			rec                domain.RaidRecord
			monID, monForm     sql.NullInt32
			raidStart, raidEnd sql.NullTime
		)
		if err := rows.Scan(&rec.MessageID, &rec.ChannelID, &rec.GuildID, &rec.InitMessageID, &rec.AuthorID, &rec.LocationID,
			&rec.Start, &rec.Level, &monID, &monForm, &raidStart, &raidEnd, &rec.GroupID); err != nil {
			return nil, fmt.Errorf("чтение рейда: %w", err)
		}
		if monID.Valid {
			rec.BossID = int(monID.Int32)
			rec.BossForm = int(monForm.Int32)
		}
		if raidStart.Valid {
			t := raidStart.Time
			rec.RaidStart = &t
		}
		if raidEnd.Valid {
			t := raidEnd.Time
			rec.RaidEnd = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListParticipants возвращает журнал объявления.
func (p *Postgres) ListParticipants(ctx context.Context, messageID string) ([]domain.Participant, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, amount, is_late, is_remote
FROM raid_members
WHERE message_id = $1
ORDER BY user_id
`, messageID)
	metrics.ObserveNetworkRequest("postgres", "raid_members_list", "raid_members", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка участников: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var part domain.Participant
		if err := rows.Scan(&part.UserID, &part.Amount, &part.Late, &part.Remote); err != nil {
			return nil, fmt.Errorf("чтение участника: %w", err)
		}
		out = append(out, part)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
