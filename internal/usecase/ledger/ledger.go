package ledger

import (
	"taubsi/internal/domain"
)

// EventKind задаёт вид события журнала.
type EventKind int

const (
	// EventAmount задаёт количество игроков.
	EventAmount EventKind = iota
	// EventAmountToggle переключает количество: повтор того же числа снимает участие.
	EventAmountToggle
	// EventLeave снимает участие.
	EventLeave
	EventLate
	EventOnTime
	EventLateToggle
	EventRemote
	EventLocal
	EventRemoteToggle
)

var kindNames = map[EventKind]string{
	EventAmount:       "amount",
	EventAmountToggle: "amount_toggle",
	EventLeave:        "leave",
	EventLate:         "late",
	EventOnTime:       "on_time",
	EventLateToggle:   "late_toggle",
	EventRemote:       "remote",
	EventLocal:        "local",
	EventRemoteToggle: "remote_toggle",
}

func (k EventKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event описывает изменение журнала от участника.
type Event struct {
	Kind   EventKind
	Member domain.Member
	Amount int
}

// NoticeKind задаёт вид уведомления подписчикам.
type NoticeKind int

const (
	NoticeJoined NoticeKind = iota + 1
	NoticeLeft
	NoticeLate
	NoticeOnTime
)

// Notice описывает изменение, о котором сообщают подписчикам.
type Notice struct {
	Kind   NoticeKind
	Actor  domain.Participant
	Amount int
}

// Limits задаёт пороги предупреждений о вместимости.
type Limits struct {
	Total  int
	Remote int
}

// DefaultLimits возвращает пороги по умолчанию.
var DefaultLimits = Limits{Total: 20, Remote: 10}

// WarningKind задаёт вид динамического предупреждения.
type WarningKind int

const (
	WarnBoth WarningKind = iota + 1
	WarnRemote
	WarnTotal
	WarnLate
)

// Ledger ведёт журнал участия одного объявления.
// Не потокобезопасен: владелец сериализует доступ.
type Ledger struct {
	limits       Limits
	participants map[string]*domain.Participant
	order        []string
}

// New создаёт пустой журнал.
func New(limits Limits) *Ledger {
	return &Ledger{limits: limits, participants: make(map[string]*domain.Participant)}
}

func (l *Ledger) touch(m domain.Member, amount int) *domain.Participant {
	p, ok := l.participants[m.UserID]
	if !ok {
		p = &domain.Participant{UserID: m.UserID, Amount: amount}
		l.participants[m.UserID] = p
		l.order = append(l.order, m.UserID)
	}
	if m.DisplayName != "" {
		p.DisplayName = m.DisplayName
	}
	if m.Team != domain.TeamNone || !ok {
		p.Team = m.Team
	}
	p.Subscriber = m.Subscriber
	return p
}

// Add задаёт количество игроков участника.
func (l *Ledger) Add(m domain.Member, amount int) domain.Participant {
	p := l.touch(m, 0)
	p.Amount = max(amount, 0)
	return *p
}

// Remove обнуляет участие, запись сохраняется.
func (l *Ledger) Remove(userID string) {
	if p, ok := l.participants[userID]; ok {
		p.Amount = 0
	}
}

// SetLate задаёт признак опоздания.
func (l *Ledger) SetLate(m domain.Member, on bool) domain.Participant {
	p := l.touch(m, 0)
	p.Late = on
	return *p
}

// SetRemote задаёт признак удалённого участия.
func (l *Ledger) SetRemote(m domain.Member, on bool) domain.Participant {
	p := l.touch(m, 0)
	p.Remote = on
	return *p
}

// Restore восстанавливает запись из хранилища.
func (l *Ledger) Restore(p domain.Participant) {
	cp := p
	cp.Amount = max(cp.Amount, 0)
	if _, ok := l.participants[p.UserID]; !ok {
		l.order = append(l.order, p.UserID)
	}
	l.participants[p.UserID] = &cp
}

// Participant возвращает запись участника.
func (l *Ledger) Participant(userID string) (domain.Participant, bool) {
	p, ok := l.participants[userID]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Participants возвращает записи в порядке первого появления.
func (l *Ledger) Participants() []domain.Participant {
	out := make([]domain.Participant, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.participants[id])
	}
	return out
}

// Total возвращает сумму всех количеств.
func (l *Ledger) Total() int {
	total := 0
	for _, p := range l.participants {
		total += p.Amount
	}
	return total
}

// RemoteTotal возвращает сумму количеств удалённых участников.
func (l *Ledger) RemoteTotal() int {
	total := 0
	for _, p := range l.participants {
		if p.Remote {
			total += p.Amount
		}
	}
	return total
}

// TotalsByTeam возвращает суммы по командам.
func (l *Ledger) TotalsByTeam() map[domain.Team]int {
	out := make(map[domain.Team]int, len(domain.Teams))
	for _, p := range l.participants {
		out[p.Team] += p.Amount
	}
	return out
}

// Warnings пересчитывает предупреждения из текущего состояния.
func (l *Ledger) Warnings() []WarningKind {
	var out []WarningKind
	remoteCap := l.RemoteTotal() > l.limits.Remote-2
	totalCap := l.Total() > l.limits.Total-2
	switch {
	case remoteCap && totalCap:
		out = append(out, WarnBoth)
	case remoteCap:
		out = append(out, WarnRemote)
	case totalCap:
		out = append(out, WarnTotal)
	}
	for _, p := range l.participants {
		if p.Late {
			out = append(out, WarnLate)
			break
		}
	}
	return out
}

// Limits возвращает пороги журнала.
func (l *Ledger) Limits() Limits {
	return l.limits
}

// Apply применяет событие. Второй результат сообщает, нужно ли уведомление.
func (l *Ledger) Apply(ev Event) (Notice, bool) {
	prev, existed := l.Participant(ev.Member.UserID)

	switch ev.Kind {
	case EventAmount:
		p := l.Add(ev.Member, ev.Amount)
		if p.Amount == 0 {
			return l.left(p, prev, existed)
		}
		return Notice{Kind: NoticeJoined, Actor: p, Amount: p.Amount}, true

	case EventAmountToggle:
		if existed && prev.Amount == ev.Amount {
			return l.Apply(Event{Kind: EventLeave, Member: ev.Member})
		}
		return l.Apply(Event{Kind: EventAmount, Member: ev.Member, Amount: ev.Amount})

	case EventLeave:
		if !existed {
			return Notice{}, false
		}
		l.touch(ev.Member, 0)
		l.Remove(ev.Member.UserID)
		p, _ := l.Participant(ev.Member.UserID)
		return l.left(p, prev, existed)

	case EventLate:
		p := l.SetLate(ev.Member, true)
		if existed && prev.Late {
			return Notice{}, false
		}
		return Notice{Kind: NoticeLate, Actor: p}, true

	case EventOnTime:
		if !existed {
			return Notice{}, false
		}
		p := l.SetLate(ev.Member, false)
		if !prev.Late || p.Amount == 0 {
			return Notice{}, false
		}
		return Notice{Kind: NoticeOnTime, Actor: p}, true

	case EventLateToggle:
		if existed && prev.Late {
			return l.Apply(Event{Kind: EventOnTime, Member: ev.Member})
		}
		return l.Apply(Event{Kind: EventLate, Member: ev.Member})

	case EventRemote:
		l.SetRemote(ev.Member, true)
		return Notice{}, false

	case EventLocal:
		if existed {
			l.SetRemote(ev.Member, false)
		}
		return Notice{}, false

	case EventRemoteToggle:
		if existed && prev.Remote {
			return l.Apply(Event{Kind: EventLocal, Member: ev.Member})
		}
		return l.Apply(Event{Kind: EventRemote, Member: ev.Member})
	}
	return Notice{}, false
}

func (l *Ledger) left(p, prev domain.Participant, existed bool) (Notice, bool) {
	if !existed || prev.Amount == 0 {
		return Notice{}, false
	}
	return Notice{Kind: NoticeLeft, Actor: p, Amount: prev.Amount}, true
}

// Recipients возвращает подписчиков с ненулевым участием, кроме автора изменения.
func (l *Ledger) Recipients(actorID string) []domain.Participant {
	var out []domain.Participant
	for _, p := range l.Participants() {
		if !p.Subscriber || p.Amount == 0 || p.UserID == actorID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ByTeam группирует участников с ненулевым участием по командам в порядке domain.Teams.
func (l *Ledger) ByTeam() []TeamGroup {
	groups := make(map[domain.Team][]domain.Participant)
	for _, p := range l.Participants() {
		if p.Amount > 0 {
			groups[p.Team] = append(groups[p.Team], p)
		}
	}
	var out []TeamGroup
	for _, team := range domain.Teams {
		members := groups[team]
		if len(members) == 0 {
			continue
		}
		total := 0
		for _, p := range members {
			total += p.Amount
		}
		out = append(out, TeamGroup{Team: team, Total: total, Members: members})
	}
	return out
}

// TeamGroup объединяет участников одной команды.
type TeamGroup struct {
	Team    domain.Team
	Total   int
	Members []domain.Participant
}
