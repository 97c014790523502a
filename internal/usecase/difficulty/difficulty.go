package difficulty

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

// ErrNoBoss возвращается для рейда без известного босса.
var ErrNoBoss = errors.New("босс рейда неизвестен")

// Source оценивает нужное число игроков через внешний сервис.
type Source interface {
	Estimator(ctx context.Context, defender, level string) (float64, error)
}

// Band переводит оценку сервиса и число игроков в уровень сложности.
func Band(estimator float64, players int) domain.Difficulty {
	p := float64(players)
	var d domain.Difficulty
	switch {
	case p < estimator-0.3:
		d = domain.DifficultyImpossible
	case p < estimator:
		d = domain.DifficultyHard
	case p <= math.Ceil(estimator):
		d = domain.DifficultyMedium
	case p <= math.Ceil(estimator)+1:
		d = domain.DifficultyEasy
	default:
		d = domain.DifficultyVeryEasy
	}
	if players == 0 || p < math.Floor(estimator) {
		d = domain.DifficultyImpossible
	}
	return d
}

// DefenderName возвращает имя босса в терминах сервиса оценки.
func DefenderName(b domain.Boss) string {
	if b.Mega > 0 {
		return b.Proto + "_MEGA"
	}
	if b.Form > 0 && b.FormProto != "" && !strings.Contains(b.FormProto, "NORMAL") {
		return b.FormProto + "_FORM"
	}
	return b.Proto
}

// LevelName возвращает уровень рейда в терминах сервиса оценки.
func LevelName(level int) string {
	switch level {
	case 6, 7:
		return "MEGA"
	case 8:
		return "ULTRA_BEAST"
	}
	return strconv.Itoa(level)
}

// Service кэширует оценки сервиса.
type Service struct {
	source Source
	cache  domain.Cache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewService создаёт сервис оценки сложности.
func NewService(source Source, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{source: source, cache: cache, ttl: ttl, log: logger}
}

// Estimator возвращает оценку для босса и уровня.
func (s *Service) Estimator(ctx context.Context, boss *domain.Boss, level int) (float64, error) {
	if boss == nil {
		return 0, ErrNoBoss
	}
	name, lvl := DefenderName(*boss), LevelName(level)
	key := "pokebattler:" + name + ":" + lvl

	if data, err := s.cache.Get(key); err == nil {
		if v, perr := strconv.ParseFloat(string(data), 64); perr == nil {
			metrics.DifficultyLookups.WithLabelValues("cache").Inc()
			return v, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn().Err(err).Str("key", key).Msg("difficulty: кэш недоступен")
	}

	v, err := s.source.Estimator(ctx, name, lvl)
	if err != nil {
		metrics.DifficultyLookups.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("оценка %s: %w", name, err)
	}
	metrics.DifficultyLookups.WithLabelValues("fetched").Inc()
	if err := s.cache.Set(key, []byte(strconv.FormatFloat(v, 'f', -1, 64)), s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("difficulty: не удалось сохранить оценку")
	}
	return v, nil
}

// Difficulty возвращает уровень сложности или DifficultyUnknown, если оценки нет.
func (s *Service) Difficulty(ctx context.Context, e domain.Encounter, players int) domain.Difficulty {
	if e.Boss == nil {
		return domain.DifficultyUnknown
	}
	est, err := s.Estimator(ctx, e.Boss, e.Level)
	if err != nil {
		s.log.Debug().Err(err).Msg("difficulty: оценка недоступна")
		return domain.DifficultyUnknown
	}
	return Band(est, players)
}
