package extract

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Result хранит найденное время и остаток текста для поиска арены.
type Result struct {
	Start    time.Time
	Found    bool
	Token    string
	Residual string
}

type candidate struct {
	at         time.Time
	token      string
	start, end int
}

var separators = strings.NewReplacer(".", ":", ";", ":", ",", ":")

// Extract ищет время начала в свободном тексте.
// Кандидаты ставятся на календарный день now. Если кандидатов несколько,
// они просматриваются справа налево.
func Extract(text string, now time.Time, event bool) Result {
	cands := candidates(text, now, event)

	chosen := -1
	switch {
	case len(cands) == 1:
		if cands[0].at.After(now) {
			chosen = 0
		}
	case len(cands) > 1:
		for i := len(cands) - 1; i >= 0; i-- {
			c := cands[i]
			if !event && !sameDay(c.at, now) {
				continue
			}
			if c.at.After(now) {
				chosen = i
				break
			}
		}
	}

	if chosen < 0 {
		return Result{Residual: text}
	}
	c := cands[chosen]
	return Result{
		Start:    c.at,
		Found:    true,
		Token:    c.token,
		Residual: text[:c.start] + text[c.end:],
	}
}

func candidates(text string, now time.Time, event bool) []candidate {
	var out []candidate
	add := func(start, end int) {
		token := text[start:end]
		h, m, ok := ParseClock(token)
		if !ok {
			return
		}
		at := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
		// в событийных каналах прошедшее время относится к завтрашнему дню
		if event && !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		out = append(out, candidate{at: at, token: token, start: start, end: end})
	}

	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				add(start, i)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		add(start, len(text))
	}
	return out
}

// ParseClock разбирает токен вида ЧЧ[:ММ]; допустимые разделители : . ; ,
func ParseClock(token string) (hour, minute int, ok bool) {
	parts := strings.Split(separators.Replace(token), ":")
	if len(parts) > 2 {
		return 0, 0, false
	}
	for _, p := range parts {
		if len(p) == 0 || len(p) > 2 || !digits(p) {
			return 0, 0, false
		}
	}
	hour, _ = strconv.Atoi(parts[0])
	if len(parts) == 2 {
		minute, _ = strconv.Atoi(parts[1])
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
