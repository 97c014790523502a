package difficulty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/infra/cache"
)

type stubSource struct {
	calls int
	value float64
	err   error
	seen  []string
}

func (s *stubSource) Estimator(_ context.Context, defender, level string) (float64, error) {
	s.calls++
	s.seen = append(s.seen, defender+"/"+level)
	return s.value, s.err
}

func TestBand(t *testing.T) {
	cases := []struct {
		est     float64
		players int
		want    domain.Difficulty
	}{
		{3.2, 0, domain.DifficultyImpossible},
		{3.2, 2, domain.DifficultyImpossible},
		{3.5, 3, domain.DifficultyImpossible},
		{3.2, 3, domain.DifficultyHard},
		{3.2, 4, domain.DifficultyMedium},
		{3.2, 5, domain.DifficultyEasy},
		{3.2, 6, domain.DifficultyVeryEasy},
		{1.0, 1, domain.DifficultyMedium},
		{1.0, 2, domain.DifficultyEasy},
	}
	for _, tc := range cases {
		if got := Band(tc.est, tc.players); got != tc.want {
			t.Fatalf("Band(%v, %d) = %v, ожидали %v", tc.est, tc.players, got, tc.want)
		}
	}
}

func TestDefenderName(t *testing.T) {
	cases := []struct {
		boss domain.Boss
		want string
	}{
		{domain.Boss{Proto: "GROUDON"}, "GROUDON"},
		{domain.Boss{Proto: "GENGAR", Mega: 1}, "GENGAR_MEGA"},
		{domain.Boss{Proto: "GIRATINA", Form: 88, FormProto: "GIRATINA_ORIGIN"}, "GIRATINA_ORIGIN_FORM"},
		{domain.Boss{Proto: "RATTATA", Form: 45, FormProto: "RATTATA_NORMAL"}, "RATTATA"},
	}
	for _, tc := range cases {
		if got := DefenderName(tc.boss); got != tc.want {
			t.Fatalf("ожидали %s, получили %s", tc.want, got)
		}
	}
	if LevelName(6) != "MEGA" || LevelName(7) != "MEGA" || LevelName(8) != "ULTRA_BEAST" || LevelName(5) != "5" {
		t.Fatalf("неверное имя уровня")
	}
}

func TestEstimatorCached(t *testing.T) {
	src := &stubSource{value: 3.4}
	svc := NewService(src, cache.NewMemory(), time.Hour, zerolog.Nop())
	boss := &domain.Boss{Proto: "GROUDON"}

	for i := 0; i < 3; i++ {
		v, err := svc.Estimator(context.Background(), boss, 5)
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if v != 3.4 {
			t.Fatalf("ожидали 3.4, получили %v", v)
		}
	}
	if src.calls != 1 {
		t.Fatalf("ожидали один запрос к сервису, получили %d", src.calls)
	}
	if src.seen[0] != "GROUDON/5" {
		t.Fatalf("неверные параметры запроса: %v", src.seen)
	}
}

func TestDifficultyUnknownOnFailure(t *testing.T) {
	src := &stubSource{err: errors.New("таймаут")}
	svc := NewService(src, cache.NewMemory(), time.Hour, zerolog.Nop())
	e := domain.Encounter{Level: 5, Boss: &domain.Boss{Proto: "GROUDON"}}
	if got := svc.Difficulty(context.Background(), e, 5); got != domain.DifficultyUnknown {
		t.Fatalf("при сбое ожидали Unknown, получили %v", got)
	}
	if got := svc.Difficulty(context.Background(), domain.Encounter{Level: 5}, 5); got != domain.DifficultyUnknown {
		t.Fatalf("без босса ожидали Unknown, получили %v", got)
	}
	if _, err := svc.Estimator(context.Background(), nil, 5); !errors.Is(err, ErrNoBoss) {
		t.Fatalf("ожидали ErrNoBoss, получили %v", err)
	}
}
