package raids

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/resolver"
)

type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	j.mu.Lock()
	j.calls = append(j.calls, call)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

type stubPlatform struct {
	mu            sync.Mutex
	log           *journal
	next          int
	messages      map[string]domain.Rendered
	deleted       []string
	cleared       []string
	removedDelete []string
	groups        map[string]string
	members       map[string]map[string]bool
	missing       map[string]bool
}

func newStubPlatform(log *journal) *stubPlatform {
	return &stubPlatform{
		log:      log,
		messages: make(map[string]domain.Rendered),
		groups:   make(map[string]string),
		members:  make(map[string]map[string]bool),
		missing:  make(map[string]bool),
	}
}

func (p *stubPlatform) Send(_ context.Context, channelID string, msg domain.Rendered) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	id := "m" + strconv.Itoa(p.next)
	p.messages[id] = msg
	p.log.add("send:" + id)
	return id, nil
}

func (p *stubPlatform) Edit(_ context.Context, _, messageID string, msg domain.Rendered) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.missing[messageID] {
		return domain.ErrNotFound
	}
	p.messages[messageID] = msg
	p.log.add("edit:" + messageID)
	return nil
}

func (p *stubPlatform) Delete(_ context.Context, _, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, messageID)
	delete(p.messages, messageID)
	return nil
}

func (p *stubPlatform) ClearControls(_ context.Context, _, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, messageID)
	return nil
}

func (p *stubPlatform) RemoveDeleteControl(_ context.Context, _, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removedDelete = append(p.removedDelete, messageID)
	return nil
}

func (p *stubPlatform) CreateGroup(_ context.Context, _, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("role%d", len(p.groups)+1)
	p.groups[id] = name
	p.members[id] = make(map[string]bool)
	return id, nil
}

func (p *stubPlatform) DeleteGroup(_ context.Context, _, groupID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.groups[groupID]; !ok {
		return domain.ErrNotFound
	}
	delete(p.groups, groupID)
	return nil
}

func (p *stubPlatform) SetGroupMember(_ context.Context, _, groupID, userID string, member bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[groupID]
	if !ok {
		return domain.ErrNotFound
	}
	m[userID] = member
	return nil
}

func (p *stubPlatform) Member(_ context.Context, _, userID string) (domain.Member, error) {
	return domain.Member{UserID: userID, DisplayName: "user-" + userID, Team: domain.TeamMystic, Subscriber: true}, nil
}

func (p *stubPlatform) SendDirect(context.Context, string, domain.Rendered) error { return nil }

func (p *stubPlatform) MessageURL(guildID, channelID, messageID string) string {
	return "https://chat/" + guildID + "/" + channelID + "/" + messageID
}

func (p *stubPlatform) message(id string) (domain.Rendered, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.messages[id]
	return m, ok
}

type stubRepo struct {
	mu           sync.Mutex
	raids        map[string]domain.RaidRecord
	participants map[string]map[string]domain.Participant
	upserts      int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		raids:        make(map[string]domain.RaidRecord),
		participants: make(map[string]map[string]domain.Participant),
	}
}

func (r *stubRepo) UpsertRaid(_ context.Context, rec domain.RaidRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raids[rec.MessageID] = rec
	return nil
}

func (r *stubRepo) DeleteRaid(_ context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.raids, messageID)
	delete(r.participants, messageID)
	return nil
}

func (r *stubRepo) UpsertParticipant(_ context.Context, messageID string, p domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.participants[messageID] == nil {
		r.participants[messageID] = make(map[string]domain.Participant)
	}
	r.participants[messageID][p.UserID] = p
	r.upserts++
	return nil
}

func (r *stubRepo) ListUpcoming(_ context.Context, after time.Time) ([]domain.RaidRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RaidRecord
	for _, rec := range r.raids {
		if rec.Start.After(after) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *stubRepo) ListParticipants(_ context.Context, messageID string) ([]domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Participant
	for _, p := range r.participants[messageID] {
		out = append(out, p)
	}
	return out, nil
}

func (r *stubRepo) has(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.raids[messageID]
	return ok
}

type stubNotifier struct {
	mu   sync.Mutex
	log  *journal
	jobs []domain.NotificationJob
}

func (n *stubNotifier) Enqueue(_ context.Context, job domain.NotificationJob) error {
	n.mu.Lock()
	n.jobs = append(n.jobs, job)
	n.mu.Unlock()
	n.log.add("notify:" + job.UserID + ":" + job.Text)
	return nil
}

func (n *stubNotifier) sent() []domain.NotificationJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.NotificationJob(nil), n.jobs...)
}

type stubCatalogue struct {
	tiers map[int][]domain.Boss
}

func (c stubCatalogue) Boss(id, form, mega int) (domain.Boss, bool) {
	for _, bosses := range c.tiers {
		for _, b := range bosses {
			if b.ID == id && b.Form == form && b.Mega == mega {
				return b, true
			}
		}
	}
	return domain.Boss{}, false
}

func (c stubCatalogue) RaidBosses(level int) []domain.Boss { return c.tiers[level] }

func (c stubCatalogue) Move(id int) (domain.Move, bool) {
	if id == 0 {
		return domain.Move{}, false
	}
	return domain.Move{ID: id, Name: "move-" + strconv.Itoa(id)}, true
}

type stubTranslator struct{}

func (stubTranslator) T(key string) string { return key }

func (stubTranslator) Tf(key string, args ...any) string {
	out := key
	for _, a := range args {
		out += fmt.Sprintf(":%v", a)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var (
	groudon = domain.Boss{ID: 383, Name: "Groudon", Proto: "GROUDON", Stats: domain.BaseStats{Attack: 270, Defense: 228, Stamina: 205}}
	kyogre  = domain.Boss{ID: 382, Name: "Kyogre", Proto: "KYOGRE", Stats: domain.BaseStats{Attack: 270, Defense: 228, Stamina: 205}}
	mewtwo  = domain.Boss{ID: 150, Name: "Mewtwo", Proto: "MEWTWO", Stats: domain.BaseStats{Attack: 300, Defense: 182, Stamina: 214}}
)

type fixture struct {
	svc      *Service
	platform *stubPlatform
	repo     *stubRepo
	notifier *stubNotifier
	table    *resolver.Table
	resolver *resolver.Resolver
	clock    *testClock
	log      *journal
}

const (
	raidChannel  = "c-raid"
	eventChannel = "c-event"
	otherChannel = "c-other"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 15, hour, minute, 0, 0, time.UTC)
}

func newFixture(t *testing.T, now time.Time, locations ...domain.Location) *fixture {
	t.Helper()
	if len(locations) == 0 {
		locations = []domain.Location{
			{ID: "g1", Name: "Rathaus", Lat: 50.1, Lon: 8.6, ImageURL: "https://img/g1"},
			{ID: "g2", Name: "Bahnhof", Lat: 50.2, Lon: 8.7},
		}
	}
	log := &journal{}
	table := resolver.NewTable()
	table.SetLocations("city", locations)
	res := resolver.New(stubCatalogue{tiers: map[int][]domain.Boss{5: {groudon, kyogre}, 6: {mewtwo}}})
	f := &fixture{
		platform: newStubPlatform(log),
		repo:     newStubRepo(),
		notifier: &stubNotifier{log: log},
		table:    table,
		resolver: res,
		clock:    &testClock{now: now},
		log:      log,
	}
	cfg := DefaultConfig()
	cfg.Now = f.clock.Now
	regions := []domain.Region{{
		Name:    "city",
		GuildID: "guild",
		RaidChannels: []domain.RaidChannel{
			{ID: raidChannel, Level: 5},
			{ID: eventChannel, Level: 5, Event: true},
		},
	}}
	f.svc = NewService(Deps{
		Platform:   f.platform,
		Repo:       f.repo,
		Notifier:   f.notifier,
		Table:      table,
		Resolver:   res,
		Translator: stubTranslator{},
	}, regions, domain.DefaultEmojis(), cfg, zerolog.Nop())
	return f
}

func (f *fixture) post(t *testing.T, author, text string) error {
	t.Helper()
	return f.svc.HandleMessage(context.Background(), domain.InboundMessage{
		GuildID:   "guild",
		ChannelID: raidChannel,
		MessageID: "init-" + author,
		AuthorID:  author,
		Text:      text,
	})
}

func (f *fixture) only(t *testing.T) *Announcement {
	t.Helper()
	live := f.svc.Live()
	if len(live) != 1 {
		t.Fatalf("ожидали одно объявление, получили %d", len(live))
	}
	return live[0]
}
