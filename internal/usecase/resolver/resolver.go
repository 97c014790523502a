package resolver

import (
	"fmt"
	"math"
	"time"

	"taubsi/internal/domain"
)

// MegaEggLevel задаёт уровень мега-яиц.
const MegaEggLevel = 6

// BaselineIV задаёт предполагаемые IV босса рейда.
var BaselineIV = [3]int{15, 15, 15}

var cpMultipliers = map[int]float64{
	10: 0.422500014305115,
	15: 0.517393946647644,
	20: 0.597400009632111,
	25: 0.667934000492096,
}

// CP рассчитывает боевую силу для уровня и IV.
func CP(level int, stats domain.BaseStats, iv [3]int) int {
	m, ok := cpMultipliers[level]
	if !ok {
		m = 0.5
	}
	atk := float64(stats.Attack + iv[0])
	def := float64(stats.Defense + iv[1])
	sta := float64(stats.Stamina + iv[2])
	return int(math.Floor(atk * math.Sqrt(def) * math.Sqrt(sta) * m * m / 10))
}

// Resolver строит рейды из данных сканера и каталога.
type Resolver struct {
	catalogue domain.Catalogue
}

// New создаёт Resolver.
func New(catalogue domain.Catalogue) *Resolver {
	return &Resolver{catalogue: catalogue}
}

// FromRow строит отсканированный рейд из строки сканера.
func (r *Resolver) FromRow(row domain.RaidRow) domain.Encounter {
	e := domain.Encounter{
		Level:   row.Level,
		Start:   row.Start,
		End:     row.End,
		Scanned: true,
	}
	if row.PokemonID == 0 {
		r.predict(&e)
		return e
	}

	boss, ok := r.catalogue.Boss(row.PokemonID, row.Form, row.Evolution)
	if !ok {
		boss = domain.Boss{ID: row.PokemonID, Form: row.Form, Mega: row.Evolution, Name: fmt.Sprintf("#%d", row.PokemonID)}
	}
	r.withBoss(&e, boss)
	if m, ok := r.catalogue.Move(row.Move1); ok {
		e.Moveset.Quick = m
	}
	if m, ok := r.catalogue.Move(row.Move2); ok {
		e.Moveset.Charge = m
	}
	return e
}

// Placeholder строит неотсканированный рейд уровня.
func (r *Resolver) Placeholder(level int) domain.Encounter {
	e := domain.Encounter{Level: level}
	r.predict(&e)
	return e
}

// Resolve возвращает текущий рейд арены, если он отсканирован, не закончился
// и подходит по уровню, иначе заглушку уровня.
func (r *Resolver) Resolve(current *domain.Encounter, level int, now time.Time) domain.Encounter {
	if current != nil && current.Scanned && !current.Expired(now) && (level == 0 || current.Level == level) {
		return *current
	}
	return r.Placeholder(level)
}

func (r *Resolver) predict(e *domain.Encounter) {
	bosses := r.catalogue.RaidBosses(e.Level)
	if len(bosses) != 1 {
		return
	}
	r.withBoss(e, bosses[0])
	e.Predicted = true
}

func (r *Resolver) withBoss(e *domain.Encounter, boss domain.Boss) {
	stats := boss.Stats
	if boss.Mega > 0 {
		if base, ok := r.catalogue.Boss(boss.ID, boss.Form, 0); ok {
			stats = base.Stats
		}
	}
	b := boss
	e.Boss = &b
	e.CP20 = CP(20, stats, BaselineIV)
	e.CP25 = CP(25, stats, BaselineIV)
}

// Title возвращает отображаемое имя рейда: имя босса или яйцо уровня.
func Title(e domain.Encounter, tr domain.Translator) string {
	if e.Boss != nil {
		return e.Boss.Name
	}
	if e.Level == MegaEggLevel {
		return tr.T("mega_egg")
	}
	return tr.Tf("level_egg", e.Level)
}
