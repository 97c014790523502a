package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"taubsi/internal/domain"
	"taubsi/internal/infra/geo"
	"taubsi/internal/infra/metrics"
	"taubsi/internal/usecase/raids"
	"taubsi/internal/usecase/resolver"
)

// Raids описывает операции жизненного цикла объявлений, которые вызывает цикл.
type Raids interface {
	Live() []*raids.Announcement
	Expired(a *raids.Announcement, now time.Time) bool
	InWarnWindow(a *raids.Announcement, now time.Time) bool
	Retire(ctx context.Context, a *raids.Announcement)
	WarnSoon(ctx context.Context, a *raids.Announcement) bool
	TrimDeleteControl(ctx context.Context, a *raids.Announcement, now time.Time) bool
	PatchEncounter(ctx context.Context, a *raids.Announcement, now time.Time) bool
}

// Boards обновляет доски рейдов.
type Boards interface {
	Sync(ctx context.Context, now time.Time) error
}

// Options задаёт параметры цикла.
type Options struct {
	Interval        time.Duration
	LocationRefresh time.Duration
	Now             func() time.Time
}

type region struct {
	name  string
	fence *geo.Fence
}

// Loop периодически сверяет объявления с данными сканера.
type Loop struct {
	state    domain.GameState
	table    *resolver.Table
	resolver *resolver.Resolver
	raids    Raids
	boards   Boards
	regions  []region
	opts     Options
	log      zerolog.Logger

	lastLocations time.Time
}

// New создаёт цикл сверки. boards может быть nil.
func New(state domain.GameState, table *resolver.Table, res *resolver.Resolver, r Raids, boards Boards, regions []domain.Region, opts Options, logger zerolog.Logger) (*Loop, error) {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.LocationRefresh <= 0 {
		opts.LocationRefresh = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Loop{
		state:    state,
		table:    table,
		resolver: res,
		raids:    r,
		boards:   boards,
		opts:     opts,
		log:      logger,
	}
	for _, rg := range regions {
		fence, err := geo.NewFence(rg.Fence)
		if err != nil {
			return nil, fmt.Errorf("регион %s: %w", rg.Name, err)
		}
		l.regions = append(l.regions, region{name: rg.Name, fence: fence})
	}
	return l, nil
}

// Run выполняет тики до отмены контекста.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	l.Tick(ctx, l.opts.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx, l.opts.Now())
		}
	}
}

// Tick выполняет одну сверку. Ошибки отдельных шагов и объявлений
// логируются и не прерывают остальные.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	defer func() {
		metrics.ReconcileTickSeconds.Observe(time.Since(start).Seconds())
	}()

	l.guard("poll", func() {
		if err := l.Poll(ctx, now); err != nil {
			metrics.IncReconcileError("gamestate")
			l.log.Error().Err(err).Msg("reconcile: не удалось опросить сканер")
		}
	})

	for _, a := range l.raids.Live() {
		l.step(ctx, a, now)
	}

	if l.boards != nil {
		l.guard("boards", func() {
			if err := l.boards.Sync(ctx, now); err != nil {
				metrics.IncReconcileError("boards")
				l.log.Warn().Err(err).Msg("reconcile: ошибки обновления досок")
			}
		})
	}
}

// Poll загружает арены (не чаще LocationRefresh) и рейды одним запросом каждое
// и публикует их в таблицу.
func (l *Loop) Poll(ctx context.Context, now time.Time) error {
	var (
		locations []domain.Location
		rows      []domain.RaidRow
	)
	refresh := l.lastLocations.IsZero() || now.Sub(l.lastLocations) >= l.opts.LocationRefresh

	g, gctx := errgroup.WithContext(ctx)
	if refresh {
		g.Go(func() error {
			var err error
			locations, err = l.state.ListLocations(gctx)
			if err != nil {
				return fmt.Errorf("загрузка арен: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		rows, err = l.state.ListRaids(gctx)
		if err != nil {
			return fmt.Errorf("загрузка рейдов: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if refresh {
		l.assignRegions(locations)
		l.lastLocations = now
	}

	updated := 0
	for _, row := range rows {
		if !row.End.After(now) {
			continue
		}
		if _, ok := l.table.Location(row.GymID); !ok {
			continue
		}
		if l.table.SetEncounter(row.GymID, l.resolver.FromRow(row)) {
			updated++
		}
	}
	if updated > 0 {
		l.log.Debug().Int("updated", updated).Int("rows", len(rows)).Msg("reconcile: рейды обновлены")
	}
	return nil
}

func (l *Loop) assignRegions(locations []domain.Location) {
	for _, rg := range l.regions {
		var inside []domain.Location
		for _, loc := range locations {
			if rg.fence.Contains(loc.Lat, loc.Lon) {
				inside = append(inside, loc)
			}
		}
		l.table.SetLocations(rg.name, inside)
		l.log.Debug().Str("region", rg.name).Int("locations", len(inside)).Msg("reconcile: арены региона")
	}
}

func (l *Loop) step(ctx context.Context, a *raids.Announcement, now time.Time) {
	l.guard("announcement", func() {
		if l.raids.Expired(a, now) {
			l.raids.Retire(ctx, a)
			return
		}
		if l.raids.InWarnWindow(a, now) {
			l.raids.WarnSoon(ctx, a)
		}
		l.raids.TrimDeleteControl(ctx, a, now)
		l.raids.PatchEncounter(ctx, a, now)
	})
}

func (l *Loop) guard(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncReconcileError(step)
			l.log.Error().Interface("panic", r).Str("step", step).Msg("reconcile: паника в шаге")
		}
	}()
	fn()
}
