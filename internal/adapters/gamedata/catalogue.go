package gamedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

// Document описывает формат файла игровых данных.
type Document struct {
	Pokemon []PokemonEntry         `json:"pokemon"`
	Moves   []MoveEntry            `json:"moves"`
	Raids   map[string][]BossEntry `json:"raids"`
}

// PokemonEntry описывает покемона (форму, мега-эволюцию) с базовыми характеристиками.
type PokemonEntry struct {
	ID        int    `json:"id"`
	Form      int    `json:"form"`
	Mega      int    `json:"mega"`
	Name      string `json:"name"`
	Proto     string `json:"proto"`
	FormProto string `json:"form_proto"`
	Attack    int    `json:"attack"`
	Defense   int    `json:"defense"`
	Stamina   int    `json:"stamina"`
}

type MoveEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type BossEntry struct {
	ID   int `json:"id"`
	Form int `json:"form"`
	Mega int `json:"mega"`
}

type key struct{ id, form, mega int }

// Catalogue хранит справочник в памяти и периодически перечитывает источник.
type Catalogue struct {
	url  string
	file string
	http *http.Client
	log  zerolog.Logger

	mu     sync.RWMutex
	bosses map[key]domain.Boss
	moves  map[int]domain.Move
	tiers  map[int][]domain.Boss
}

var _ domain.Catalogue = (*Catalogue)(nil)

// New создаёт каталог. Если url пуст, данные читаются из file.
func New(url, file string, logger zerolog.Logger) *Catalogue {
	return &Catalogue{
		url:    url,
		file:   file,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    logger,
		bosses: map[key]domain.Boss{},
		moves:  map[int]domain.Move{},
		tiers:  map[int][]domain.Boss{},
	}
}

// Reload перечитывает источник и атомарно заменяет справочник.
func (c *Catalogue) Reload(ctx context.Context) error {
	raw, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("разбор игровых данных: %w", err)
	}
	c.Apply(doc)
	return nil
}

func (c *Catalogue) fetch(ctx context.Context) ([]byte, error) {
	if c.url == "" {
		raw, err := os.ReadFile(c.file)
		if err != nil {
			return nil, fmt.Errorf("чтение игровых данных: %w", err)
		}
		return raw, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("запрос игровых данных: %w", err)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("gamedata", "fetch", c.url, start, err)
		return nil, fmt.Errorf("загрузка игровых данных: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("gamedata: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("gamedata", "fetch", c.url, start, err)
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	metrics.ObserveNetworkRequest("gamedata", "fetch", c.url, start, err)
	if err != nil {
		return nil, fmt.Errorf("загрузка игровых данных: %w", err)
	}
	return raw, nil
}

// Apply строит индексы по документу.
func (c *Catalogue) Apply(doc Document) {
	bosses := make(map[key]domain.Boss, len(doc.Pokemon))
	for _, p := range doc.Pokemon {
		bosses[key{p.ID, p.Form, p.Mega}] = domain.Boss{
			ID:        p.ID,
			Form:      p.Form,
			Mega:      p.Mega,
			Name:      p.Name,
			Proto:     p.Proto,
			FormProto: p.FormProto,
			Stats:     domain.BaseStats{Attack: p.Attack, Defense: p.Defense, Stamina: p.Stamina},
		}
	}
	moves := make(map[int]domain.Move, len(doc.Moves))
	for _, m := range doc.Moves {
		moves[m.ID] = domain.Move{ID: m.ID, Name: m.Name}
	}
	tiers := make(map[int][]domain.Boss, len(doc.Raids))
	for lvl, entries := range doc.Raids {
		level, err := strconv.Atoi(lvl)
		if err != nil {
			c.log.Warn().Str("level", lvl).Msg("gamedata: неизвестный уровень рейда")
			continue
		}
		for _, e := range entries {
			if b, ok := lookup(bosses, e.ID, e.Form, e.Mega); ok {
				tiers[level] = append(tiers[level], b)
			}
		}
	}

	c.mu.Lock()
	c.bosses, c.moves, c.tiers = bosses, moves, tiers
	c.mu.Unlock()
	c.log.Info().Int("pokemon", len(bosses)).Int("moves", len(moves)).Int("tiers", len(tiers)).Msg("gamedata: справочник обновлён")
}

// форма без собственных характеристик наследует их от базовой формы
func lookup(bosses map[key]domain.Boss, id, form, mega int) (domain.Boss, bool) {
	if b, ok := bosses[key{id, form, mega}]; ok {
		return b, true
	}
	b, ok := bosses[key{id, 0, mega}]
	if !ok {
		return domain.Boss{}, false
	}
	b.Form = form
	return b, true
}

func (c *Catalogue) Boss(id, form, mega int) (domain.Boss, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lookup(c.bosses, id, form, mega)
}

func (c *Catalogue) RaidBosses(level int) []domain.Boss {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Boss(nil), c.tiers[level]...)
}

func (c *Catalogue) Move(id int) (domain.Move, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.moves[id]
	return m, ok
}

// Run перечитывает справочник с интервалом every до отмены контекста.
func (c *Catalogue) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Reload(ctx); err != nil {
				c.log.Error().Err(err).Msg("gamedata: не удалось обновить справочник")
			}
		}
	}
}
