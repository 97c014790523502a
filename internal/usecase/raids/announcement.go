package raids

import (
	"sort"
	"sync"
	"time"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/ledger"
)

// State задаёт стадию жизненного цикла объявления.
type State int

const (
	StateCreated State = iota
	StateLive
	StateWarned
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLive:
		return "live"
	case StateWarned:
		return "warned"
	default:
		return "retired"
	}
}

// Announcement описывает объявление рейда с журналом участия.
// Поля после mu изменяются только под mu.
type Announcement struct {
	ID            string
	ChannelID     string
	GuildID       string
	InitMessageID string
	AuthorID      string
	Location      domain.Location
	Level         int
	Start         time.Time
	Event         bool
	FooterPrefix  string
	CreatedAt     time.Time

	mu            sync.Mutex
	state         State
	encounter     domain.Encounter
	ledger        *ledger.Ledger
	static        map[string]struct{}
	difficulty    domain.Difficulty
	groupID       string
	deleteControl bool
}

func newAnnouncement(limits ledger.Limits) *Announcement {
	return &Announcement{
		ledger: ledger.New(limits),
		static: make(map[string]struct{}),
	}
}

// State возвращает текущую стадию.
func (a *Announcement) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Encounter возвращает показываемый рейд.
func (a *Announcement) Encounter() domain.Encounter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.encounter
}

// Total возвращает сумму участников.
func (a *Announcement) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Total()
}

// Participants возвращает копию журнала.
func (a *Announcement) Participants() []domain.Participant {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Participants()
}

// StaticWarnings возвращает статические предупреждения по алфавиту.
func (a *Announcement) StaticWarnings() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.staticLocked()
}

func (a *Announcement) staticLocked() []string {
	out := make([]string, 0, len(a.static))
	for w := range a.static {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// viewLocked собирает данные для отрисовки. Вызывается под mu.
func (a *Announcement) viewLocked(emojis domain.Emojis, loc *time.Location) View {
	return View{
		Location:      a.Location,
		Encounter:     a.encounter,
		Start:         a.Start,
		Groups:        a.ledger.ByTeam(),
		Total:         a.ledger.Total(),
		Warnings:      a.ledger.Warnings(),
		Limits:        a.ledger.Limits(),
		Static:        a.staticLocked(),
		Difficulty:    a.difficulty,
		FooterPrefix:  a.FooterPrefix,
		Controls:      a.state != StateRetired,
		DeleteControl: a.deleteControl && a.state != StateRetired,
		Emojis:        emojis,
		TZ:            loc,
	}
}

// recordLocked возвращает снимок для хранилища. Вызывается под mu.
func (a *Announcement) recordLocked() domain.RaidRecord {
	rec := domain.RaidRecord{
		MessageID:     a.ID,
		ChannelID:     a.ChannelID,
		GuildID:       a.GuildID,
		InitMessageID: a.InitMessageID,
		AuthorID:      a.AuthorID,
		LocationID:    a.Location.ID,
		GroupID:       a.groupID,
		Start:         a.Start,
		Level:         a.encounter.Level,
	}
	if rec.Level == 0 {
		rec.Level = a.Level
	}
	if a.encounter.Boss != nil {
		rec.BossID = a.encounter.Boss.ID
		rec.BossForm = a.encounter.Boss.Form
	}
	if a.encounter.Scanned {
		start, end := a.encounter.Start, a.encounter.End
		rec.RaidStart = &start
		rec.RaidEnd = &end
	}
	return rec
}

// overlaps сообщает, что объявления на одной арене пересекаются по времени.
func overlaps(a, b *Announcement, window time.Duration) bool {
	if a.Location.ID != b.Location.ID {
		return false
	}
	d := a.Start.Sub(b.Start)
	if d < 0 {
		d = -d
	}
	return d <= window
}
