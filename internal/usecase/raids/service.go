package raids

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/ledger"
	"taubsi/internal/usecase/matcher"
	"taubsi/internal/usecase/resolver"
)

// Estimator оценивает сложность рейда по числу игроков.
type Estimator interface {
	Difficulty(ctx context.Context, e domain.Encounter, players int) domain.Difficulty
}

// Config задаёт тайминги и пороги объявлений.
type Config struct {
	Grace            time.Duration
	WarnBefore       time.Duration
	DeleteWindow     time.Duration
	Window           time.Duration
	Limits           ledger.Limits
	TimeMissingScore float64
	PromptCutoff     float64
	MaxCandidates    int
	TZ               *time.Location
	Now              func() time.Time
}

// DefaultConfig возвращает значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		Grace:            6 * time.Minute,
		WarnBefore:       5 * time.Minute,
		DeleteWindow:     5 * time.Minute,
		Window:           45 * time.Minute,
		Limits:           ledger.DefaultLimits,
		TimeMissingScore: 80,
		PromptCutoff:     60,
		MaxCandidates:    25,
		TZ:               time.UTC,
		Now:              time.Now,
	}
}

type channelRef struct {
	region  domain.Region
	channel domain.RaidChannel
}

// Deps собирает внешние зависимости сервиса.
type Deps struct {
	Platform   domain.Platform
	Repo       domain.RaidRepo
	Notifier   domain.Notifier
	Table      *resolver.Table
	Resolver   *resolver.Resolver
	Difficulty Estimator
	Translator domain.Translator
}

// Service владеет таблицей объявлений и подсказок выбора арены.
type Service struct {
	platform   domain.Platform
	repo       domain.RaidRepo
	notifier   domain.Notifier
	table      *resolver.Table
	resolver   *resolver.Resolver
	matcher    *matcher.Matcher
	difficulty Estimator
	tr         domain.Translator
	emojis     domain.Emojis
	cfg        Config
	log        zerolog.Logger

	channels map[string]channelRef
	regions  map[string]domain.Region

	mu            sync.RWMutex
	announcements map[string]*Announcement
	prompts       map[string]*Prompt
}

// NewService создаёт сервис объявлений.
func NewService(deps Deps, regions []domain.Region, emojis domain.Emojis, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TZ == nil {
		cfg.TZ = time.UTC
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 25
	}
	s := &Service{
		platform:      deps.Platform,
		repo:          deps.Repo,
		notifier:      deps.Notifier,
		table:         deps.Table,
		resolver:      deps.Resolver,
		matcher:       matcher.New(),
		difficulty:    deps.Difficulty,
		tr:            deps.Translator,
		emojis:        emojis,
		cfg:           cfg,
		log:           logger,
		channels:      make(map[string]channelRef),
		regions:       make(map[string]domain.Region),
		announcements: make(map[string]*Announcement),
		prompts:       make(map[string]*Prompt),
	}
	for _, r := range regions {
		s.regions[r.Name] = r
		for _, ch := range r.RaidChannels {
			s.channels[ch.ID] = channelRef{region: r, channel: ch}
		}
	}
	return s
}

func (s *Service) now() time.Time {
	return s.cfg.Now().In(s.cfg.TZ)
}

// Config возвращает настройки сервиса.
func (s *Service) Config() Config {
	return s.cfg
}

// Table возвращает таблицу арен.
func (s *Service) Table() *resolver.Table {
	return s.table
}

// Resolver возвращает Resolver.
func (s *Service) Resolver() *resolver.Resolver {
	return s.resolver
}

// Translator возвращает таблицу строк.
func (s *Service) Translator() domain.Translator {
	return s.tr
}

// IsRaidChannel сообщает, настроен ли канал для рейдов.
func (s *Service) IsRaidChannel(channelID string) bool {
	_, ok := s.channels[channelID]
	return ok
}

// Locations возвращает арены региона канала.
func (s *Service) Locations(channelID string) []domain.Location {
	ref, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	return s.table.Locations(ref.region.Name)
}

// Suggest возвращает арены для автодополнения.
func (s *Service) Suggest(channelID, text string, limit int) []domain.Location {
	return s.matcher.Names(text, s.Locations(channelID), limit)
}

// Get возвращает объявление по сообщению.
func (s *Service) Get(messageID string) (*Announcement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.announcements[messageID]
	return a, ok
}

func (s *Service) register(a *Announcement) {
	s.mu.Lock()
	s.announcements[a.ID] = a
	s.mu.Unlock()
}

func (s *Service) unregister(messageID string) (*Announcement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.announcements[messageID]
	if ok {
		delete(s.announcements, messageID)
	}
	return a, ok
}

// Live возвращает активные объявления по времени начала.
func (s *Service) Live() []*Announcement {
	s.mu.RLock()
	out := make([]*Announcement, 0, len(s.announcements))
	for _, a := range s.announcements {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SnapshotEntry описывает объявление для HTTP.
type SnapshotEntry struct {
	MessageID string    `json:"message_id"`
	ChannelID string    `json:"channel_id"`
	Location  string    `json:"location"`
	Start     time.Time `json:"start"`
	Level     int       `json:"level"`
	Boss      string    `json:"boss,omitempty"`
	Scanned   bool      `json:"scanned"`
	Total     int       `json:"total"`
	State     string    `json:"state"`
}

// Snapshot возвращает описание активных объявлений.
func (s *Service) Snapshot() []SnapshotEntry {
	live := s.Live()
	out := make([]SnapshotEntry, 0, len(live))
	for _, a := range live {
		a.mu.Lock()
		entry := SnapshotEntry{
			MessageID: a.ID,
			ChannelID: a.ChannelID,
			Location:  a.Location.Name,
			Start:     a.Start,
			Level:     a.encounter.Level,
			Scanned:   a.encounter.Scanned,
			Total:     a.ledger.Total(),
			State:     a.state.String(),
		}
		if a.encounter.Boss != nil {
			entry.Boss = a.encounter.Boss.Name
		}
		a.mu.Unlock()
		out = append(out, entry)
	}
	return out
}

func (s *Service) logFor(a *Announcement) zerolog.Logger {
	return s.log.With().
		Str("message_id", a.ID).
		Str("location", a.Location.Name).
		Str("channel", a.ChannelID).
		Logger()
}

// render отрисовывает объявление. Вызывается под a.mu.
func (s *Service) renderLocked(a *Announcement) domain.Rendered {
	return Render(a.viewLocked(s.emojis, s.cfg.TZ), s.tr)
}

// refreshLocked пересчитывает сложность, отрисовывает и редактирует сообщение.
// Вызывается под a.mu.
func (s *Service) refreshLocked(ctx context.Context, a *Announcement) {
	if s.difficulty != nil {
		a.difficulty = s.difficulty.Difficulty(ctx, a.encounter, a.ledger.Total())
	}
	if a.ID == "" {
		return
	}
	if err := s.platform.Edit(ctx, a.ChannelID, a.ID, s.renderLocked(a)); err != nil {
		l := s.logFor(a)
		l.Warn().Err(err).Msg("raids: не удалось обновить сообщение")
	}
}

func (s *Service) persistLocked(ctx context.Context, a *Announcement) {
	if err := s.repo.UpsertRaid(ctx, a.recordLocked()); err != nil {
		l := s.logFor(a)
		l.Error().Err(err).Msg("raids: не удалось сохранить рейд")
	}
}
