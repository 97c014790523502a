package ledger

import (
	"fmt"
	"reflect"
	"testing"

	"taubsi/internal/domain"
)

func member(id string, team domain.Team) domain.Member {
	return domain.Member{UserID: id, DisplayName: "user-" + id, Team: team, Subscriber: true}
}

func TestTotalCapIsAdvisory(t *testing.T) {
	l := New(DefaultLimits)
	for i := 0; i < 21; i++ {
		l.Apply(Event{Kind: EventAmount, Member: member(fmt.Sprint(i), domain.TeamMystic), Amount: 1})
	}
	if !reflect.DeepEqual(l.Warnings(), []WarningKind{WarnTotal}) {
		t.Fatalf("ожидали предупреждение о лимите, получили %v", l.Warnings())
	}
	l.Apply(Event{Kind: EventAmount, Member: member("21", domain.TeamValor), Amount: 1})
	if l.Total() != 22 {
		t.Fatalf("лимит не должен ограничивать участие, total=%d", l.Total())
	}
	if !reflect.DeepEqual(l.Warnings(), []WarningKind{WarnTotal}) {
		t.Fatalf("предупреждение должно сохраняться, получили %v", l.Warnings())
	}
}

func TestWarningThresholds(t *testing.T) {
	l := New(Limits{Total: 20, Remote: 10})
	l.Apply(Event{Kind: EventAmount, Member: member("a", domain.TeamValor), Amount: 9})
	l.Apply(Event{Kind: EventRemote, Member: member("a", domain.TeamValor)})
	if !reflect.DeepEqual(l.Warnings(), []WarningKind{WarnRemote}) {
		t.Fatalf("ожидали предупреждение об удалённых, получили %v", l.Warnings())
	}
	l.Apply(Event{Kind: EventAmount, Member: member("b", domain.TeamValor), Amount: 10})
	if !reflect.DeepEqual(l.Warnings(), []WarningKind{WarnBoth}) {
		t.Fatalf("ожидали одно общее предупреждение, получили %v", l.Warnings())
	}
	l.Apply(Event{Kind: EventLate, Member: member("c", domain.TeamNone)})
	if !reflect.DeepEqual(l.Warnings(), []WarningKind{WarnBoth, WarnLate}) {
		t.Fatalf("ожидали предупреждение об опоздании, получили %v", l.Warnings())
	}
}

func TestWarningsRevertWithState(t *testing.T) {
	l := New(DefaultLimits)
	l.Apply(Event{Kind: EventAmount, Member: member("a", domain.TeamMystic), Amount: 5})
	before := l.Warnings()

	l.Apply(Event{Kind: EventAmount, Member: member("a", domain.TeamMystic), Amount: 19})
	l.Apply(Event{Kind: EventLate, Member: member("a", domain.TeamMystic)})
	if reflect.DeepEqual(l.Warnings(), before) {
		t.Fatalf("предупреждения должны измениться")
	}

	l.Apply(Event{Kind: EventAmount, Member: member("a", domain.TeamMystic), Amount: 5})
	l.Apply(Event{Kind: EventOnTime, Member: member("a", domain.TeamMystic)})
	if !reflect.DeepEqual(l.Warnings(), before) {
		t.Fatalf("после отката ожидали %v, получили %v", before, l.Warnings())
	}
}

func TestApplyNotices(t *testing.T) {
	l := New(DefaultLimits)
	ash := member("ash", domain.TeamValor)

	n, ok := l.Apply(Event{Kind: EventAmount, Member: ash, Amount: 2})
	if !ok || n.Kind != NoticeJoined || n.Amount != 2 {
		t.Fatalf("ожидали уведомление о присоединении, получили %+v %v", n, ok)
	}

	n, ok = l.Apply(Event{Kind: EventLateToggle, Member: ash})
	if !ok || n.Kind != NoticeLate {
		t.Fatalf("ожидали уведомление об опоздании, получили %+v", n)
	}
	n, ok = l.Apply(Event{Kind: EventLateToggle, Member: ash})
	if !ok || n.Kind != NoticeOnTime {
		t.Fatalf("ожидали уведомление о пунктуальности, получили %+v", n)
	}

	if _, ok = l.Apply(Event{Kind: EventRemoteToggle, Member: ash}); ok {
		t.Fatalf("удалённое участие не уведомляет")
	}
	if p, _ := l.Participant("ash"); !p.Remote {
		t.Fatalf("ожидали признак удалённого участия")
	}

	n, ok = l.Apply(Event{Kind: EventAmountToggle, Member: ash, Amount: 2})
	if !ok || n.Kind != NoticeLeft || n.Amount != 2 {
		t.Fatalf("повтор того же числа должен снимать участие, получили %+v", n)
	}
	if p, ok := l.Participant("ash"); !ok || p.Amount != 0 || !p.Remote {
		t.Fatalf("запись должна сохраниться с нулём и флагами: %+v", p)
	}
	if _, ok = l.Apply(Event{Kind: EventLeave, Member: ash}); ok {
		t.Fatalf("повторный выход не уведомляет")
	}
}

func TestFlagToggleCreatesAtZero(t *testing.T) {
	l := New(DefaultLimits)
	l.Apply(Event{Kind: EventRemote, Member: member("misty", domain.TeamMystic)})
	p, ok := l.Participant("misty")
	if !ok || p.Amount != 0 || !p.Remote {
		t.Fatalf("ожидали запись с нулевым количеством: %+v", p)
	}
	if l.Total() != 0 {
		t.Fatalf("ожидали total 0, получили %d", l.Total())
	}
	if _, ok := l.Apply(Event{Kind: EventOnTime, Member: member("brock", domain.TeamNone)}); ok {
		t.Fatalf("событие о пунктуальности для нового участника не уведомляет")
	}
	if _, ok := l.Participant("brock"); ok {
		t.Fatalf("снятие флага не создаёт запись")
	}
}

func TestTotalsNeverNegative(t *testing.T) {
	l := New(DefaultLimits)
	l.Apply(Event{Kind: EventAmount, Member: member("a", domain.TeamMystic), Amount: -3})
	l.Restore(domain.Participant{UserID: "b", Amount: -1, Team: domain.TeamValor})
	if l.Total() != 0 {
		t.Fatalf("сумма не может быть отрицательной: %d", l.Total())
	}
}

func TestRecipientsAndTeams(t *testing.T) {
	l := New(DefaultLimits)
	l.Apply(Event{Kind: EventAmount, Member: member("a", domain.TeamInstinct), Amount: 1})
	l.Apply(Event{Kind: EventAmount, Member: member("b", domain.TeamMystic), Amount: 2})
	quiet := member("c", domain.TeamNone)
	quiet.Subscriber = false
	l.Apply(Event{Kind: EventAmount, Member: quiet, Amount: 3})
	l.Apply(Event{Kind: EventRemote, Member: member("d", domain.TeamValor)})

	rec := l.Recipients("a")
	if len(rec) != 1 || rec[0].UserID != "b" {
		t.Fatalf("ожидали одного получателя b, получили %+v", rec)
	}

	groups := l.ByTeam()
	var teams []domain.Team
	for _, g := range groups {
		teams = append(teams, g.Team)
	}
	want := []domain.Team{domain.TeamMystic, domain.TeamInstinct, domain.TeamNone}
	if !reflect.DeepEqual(teams, want) {
		t.Fatalf("ожидали порядок команд %v, получили %v", want, teams)
	}
	byTeam := l.TotalsByTeam()
	if byTeam[domain.TeamMystic] != 2 || byTeam[domain.TeamNone] != 3 || byTeam[domain.TeamValor] != 0 {
		t.Fatalf("неверные суммы по командам: %v", byTeam)
	}
	sum := 0
	for _, v := range byTeam {
		sum += v
	}
	if sum != l.Total() {
		t.Fatalf("сумма по командам %d не совпадает с total %d", sum, l.Total())
	}
}
