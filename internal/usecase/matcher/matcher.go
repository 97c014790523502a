package matcher

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"taubsi/internal/domain"
)

const (
	// Exact задаёт порог уверенного совпадения.
	Exact = 95.0
	// Strong задаёт запасной порог.
	Strong = 90.0
)

// Candidate хранит арену с оценкой сходства 0..100.
type Candidate struct {
	Location domain.Location
	Score    float64
}

// Normalize приводит строку к виду для нечёткого сравнения.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ß", "ss")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Ratio считает сходство по расстоянию Левенштейна.
func Ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// PartialRatio ищет лучшее сходство короткой строки с окном длинной.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if r := Ratio(s, string(long[i:i+len(short)])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// Score объединяет полное и частичное сходство нормализованных строк.
func Score(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	short, long := min(la, lb), max(la, lb)
	full := Ratio(a, b)
	if short == 0 || float64(long) < 1.5*float64(short) {
		return full
	}
	return max(full, PartialRatio(a, b))
}

// Matcher сопоставляет текст с каталогом арен.
type Matcher struct{}

// New создаёт Matcher.
func New() *Matcher {
	return &Matcher{}
}

// Match возвращает всех кандидатов по убыванию оценки.
// При равной оценке порядок задаётся именем, затем идентификатором.
func (m *Matcher) Match(text string, locations []domain.Location) []Candidate {
	query := Normalize(text)
	out := make([]Candidate, 0, len(locations))
	for _, loc := range locations {
		out = append(out, Candidate{Location: loc, Score: Score(query, Normalize(loc.Name))})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Location.Name != out[j].Location.Name {
			return out[i].Location.Name < out[j].Location.Name
		}
		return out[i].Location.ID < out[j].Location.ID
	})
	return out
}

// Names возвращает до limit имён для автодополнения.
func (m *Matcher) Names(text string, locations []domain.Location, limit int) []domain.Location {
	cands := m.Match(text, locations)
	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]domain.Location, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Location)
	}
	return out
}

// Preferred применяет политику порогов: сначала >= 95, затем >= 90, иначе весь список.
func Preferred(cands []Candidate) []Candidate {
	for _, threshold := range []float64{Exact, Strong} {
		var out []Candidate
		for _, c := range cands {
			if c.Score >= threshold {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return cands
}
