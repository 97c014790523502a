package domain

import (
	"testing"
	"time"
)

func TestEncounterEqual(t *testing.T) {
	mewtwo := &Boss{ID: 150, Name: "Mewtwo"}
	armored := &Boss{ID: 150, Form: 133, Name: "Mewtwo"}

	cases := []struct {
		name string
		a, b Encounter
		want bool
	}{
		{"оба яйца разных уровней", Encounter{Level: 5}, Encounter{Level: 3, Scanned: true, Start: time.Now()}, true},
		{"яйцо и босс", Encounter{Level: 5}, Encounter{Level: 5, Boss: mewtwo}, false},
		{"босс и яйцо", Encounter{Level: 5, Boss: mewtwo}, Encounter{Level: 5}, false},
		{"тот же босс", Encounter{Boss: mewtwo}, Encounter{Boss: &Boss{ID: 150}}, true},
		{"другая форма", Encounter{Boss: mewtwo}, Encounter{Boss: armored}, false},
		{"предсказание отличается", Encounter{Boss: mewtwo, Predicted: true}, Encounter{Boss: mewtwo}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Fatalf("ожидали %v, получили %v", tc.want, got)
			}
		})
	}
}

func TestEncounterHasHatched(t *testing.T) {
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	if !(Encounter{Predicted: true}).HasHatched(now) {
		t.Fatalf("предсказанный босс считается вылупившимся")
	}
	if (Encounter{}).HasHatched(now) {
		t.Fatalf("неотсканированное яйцо не вылупилось")
	}
	scanned := Encounter{Scanned: true, Start: now.Add(-time.Minute), End: now.Add(44 * time.Minute)}
	if !scanned.HasHatched(now) {
		t.Fatalf("рейд уже начался")
	}
	if scanned.Expired(now) {
		t.Fatalf("рейд ещё не закончился")
	}
	if !scanned.Expired(now.Add(time.Hour)) {
		t.Fatalf("рейд должен закончиться")
	}
}

func TestInfoChannelHasLevel(t *testing.T) {
	ch := InfoChannel{Levels: []int{1, 3}}
	if !ch.HasLevel(3) || ch.HasLevel(5) {
		t.Fatalf("неверная проверка уровней")
	}
}

func TestParseTeam(t *testing.T) {
	cases := map[string]Team{"Mystic": TeamMystic, " wagemut ": TeamValor, "Gelb": TeamInstinct, "none": TeamNone}
	for name, want := range cases {
		got, ok := ParseTeam(name)
		if !ok || got != want {
			t.Fatalf("%q: ожидали %v, получили %v", name, want, got)
		}
	}
	if _, ok := ParseTeam("moderator"); ok {
		t.Fatalf("посторонняя роль не должна распознаваться как команда")
	}
}
