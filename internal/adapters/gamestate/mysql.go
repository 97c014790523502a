package gamestate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

const queryTimeout = 5 * time.Second

const locationsQuery = `SELECT gym.gym_id, COALESCE(gymdetails.name, ''), COALESCE(gymdetails.url, ''), gym.latitude, gym.longitude
FROM gym
LEFT JOIN gymdetails ON gymdetails.gym_id = gym.gym_id`

const raidsQuery = `SELECT gym_id, level, COALESCE(pokemon_id, 0), COALESCE(form, 0), COALESCE(costume, 0), COALESCE(evolution, 0),
	COALESCE(move_1, 0), COALESCE(move_2, 0), start, end
FROM raid
WHERE end > UTC_TIMESTAMP()
ORDER BY end`

// MySQL читает арены и рейды из базы сканера.
type MySQL struct {
	db *sql.DB
}

var _ domain.GameState = (*MySQL)(nil)

// NewMySQL создаёт адаптер базы сканера.
func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

func (m *MySQL) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}

// ListLocations возвращает все арены с названием.
func (m *MySQL) ListLocations(ctx context.Context) ([]domain.Location, error) {
	ctx, cancel := m.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := m.db.QueryContext(ctx, locationsQuery)
	metrics.ObserveNetworkRequest("mysql", "gyms_list", "gym", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка арен: %w", err)
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.ImageURL, &loc.Lat, &loc.Lon); err != nil {
			return nil, fmt.Errorf("чтение арены: %w", err)
		}
		if loc.Name == "" {
			continue
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("чтение арен: %w", err)
	}
	return out, nil
}

// ListRaids возвращает незакончившиеся рейды одним запросом.
func (m *MySQL) ListRaids(ctx context.Context) ([]domain.RaidRow, error) {
	ctx, cancel := m.queryCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := m.db.QueryContext(ctx, raidsQuery)
	metrics.ObserveNetworkRequest("mysql", "raids_list", "raid", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка рейдов: %w", err)
	}
	defer rows.Close()

	var out []domain.RaidRow
	for rows.Next() {
		var r domain.RaidRow
		if err := rows.Scan(&r.GymID, &r.Level, &r.PokemonID, &r.Form, &r.Costume, &r.Evolution, &r.Move1, &r.Move2, &r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("чтение рейда: %w", err)
		}
		r.Start = r.Start.UTC()
		r.End = r.End.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("чтение рейдов: %w", err)
	}
	return out, nil
}
