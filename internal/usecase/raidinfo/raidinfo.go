package raidinfo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/raids"
	"taubsi/internal/usecase/resolver"
)

const (
	infoPrefix   = "info"
	clock        = "15:04"
	appleMapsURL = "https://maps.apple.com/maps?daddr=%f,%f"
)

// Параметры подсказок времени.
const (
	MinRemaining = 9 * time.Minute
	FirstDelay   = 5 * time.Minute
	Step         = 10 * time.Minute
	Gap          = 5 * time.Minute
	EndMargin    = 6 * time.Minute
	PressLead    = 4 * time.Minute
)

// Scheduler создаёт объявления по кнопке доски.
type Scheduler interface {
	CreateScheduled(ctx context.Context, req raids.ScheduleRequest) ([]*raids.Announcement, error)
}

// Board описывает сообщение о рейде на арене в инфо-канале.
type Board struct {
	ChannelID string
	MessageID string
	Location  domain.Location
	Encounter domain.Encounter
	Times     []time.Time
	used      map[int64]struct{}
}

type infoRef struct {
	region domain.Region
	info   domain.InfoChannel
}

// Service ведёт доски рейдов во всех инфо-каналах.
type Service struct {
	platform  domain.Platform
	table     *resolver.Table
	scheduler Scheduler
	tr        domain.Translator
	tz        *time.Location
	log       zerolog.Logger

	channels map[string]infoRef

	mu     sync.Mutex
	boards map[string]*Board
}

// NewService создаёт сервис досок.
func NewService(platform domain.Platform, table *resolver.Table, scheduler Scheduler, tr domain.Translator, regions []domain.Region, tz *time.Location, logger zerolog.Logger) *Service {
	if tz == nil {
		tz = time.UTC
	}
	s := &Service{
		platform:  platform,
		table:     table,
		scheduler: scheduler,
		tr:        tr,
		tz:        tz,
		log:       logger,
		channels:  make(map[string]infoRef),
		boards:    make(map[string]*Board),
	}
	for _, r := range regions {
		for _, ch := range r.InfoChannels {
			s.channels[ch.ID] = infoRef{region: r, info: ch}
		}
	}
	return s
}

// Enabled сообщает, настроены ли инфо-каналы.
func (s *Service) Enabled() bool {
	return len(s.channels) > 0
}

func boardKey(channelID, locationID string) string {
	return channelID + "/" + locationID
}

// InfoData кодирует кнопку времени.
func InfoData(locationID string, start time.Time) string {
	return fmt.Sprintf("%s:%s:%d", infoPrefix, locationID, start.Unix())
}

// ParseInfoData разбирает данные кнопки времени.
func ParseInfoData(data string) (locationID string, start time.Time, ok bool) {
	rest, found := strings.CutPrefix(data, infoPrefix+":")
	if !found {
		return "", time.Time{}, false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", time.Time{}, false
	}
	unix, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return rest[:i], time.Unix(unix, 0), true
}

// SuggestTimes предлагает время начала: ближайшее возможное, затем каждые
// полные 10 минут не раньше чем через 5 минут после предыдущего и до конца
// рейда минус 6 минут. Если до конца меньше 9 минут, подсказок нет.
func SuggestTimes(start, end, now time.Time) []time.Time {
	if math.Floor(end.Sub(now).Minutes()) < MinRemaining.Minutes() {
		return nil
	}
	first := start
	if start.Before(now) {
		first = now.Add(FirstDelay)
	}
	out := []time.Time{first}
	limit := end.Add(-EndMargin)
	for t := start.Truncate(time.Minute); !t.After(end); t = t.Add(time.Minute) {
		if t.Minute()%10 != 0 {
			continue
		}
		if t.After(out[len(out)-1].Add(Gap)) && t.Before(limit) {
			out = append(out, t)
		}
	}
	return out
}

// Render строит сообщение доски.
func Render(b *Board, tr domain.Translator, tz *time.Location) domain.Rendered {
	e := b.Encounter
	loc := b.Location
	title := resolver.Title(e, tr)
	var desc strings.Builder
	if e.Boss != nil && !e.Predicted {
		title += " " + tr.T("raid")
		fmt.Fprintf(&desc, "%s **%s** <t:%d:R>\n", tr.T("until"), e.End.In(tz).Format(clock), e.End.Unix())
		fmt.Fprintf(&desc, "100%%: **%d** | **%d**\n", e.CP20, e.CP25)
		if !e.Moveset.Empty() {
			fmt.Fprintf(&desc, "%s: %s | %s", tr.T("moves"), e.Moveset.Quick.Name, e.Moveset.Charge.Name)
		}
	} else {
		if e.Boss != nil {
			title += " " + tr.T("egg")
		}
		fmt.Fprintf(&desc, "%s <t:%d:R>\n", tr.T("hatches"), e.Start.Unix())
		fmt.Fprintf(&desc, "%s: **%s – %s**", tr.T("raid_time"), e.Start.In(tz).Format(clock), e.End.In(tz).Format(clock))
	}
	fmt.Fprintf(&desc, "\n\n[Google Maps](%s) | [Apple Maps](%s)", raids.MapsURL(loc), fmt.Sprintf(appleMapsURL, loc.Lat, loc.Lon))

	out := domain.Rendered{
		Title:        title,
		Author:       loc.Name,
		AuthorIcon:   loc.ImageURL,
		Description:  strings.TrimRight(desc.String(), "\n"),
		ThumbnailURL: loc.ImageURL,
	}
	for _, t := range b.Times {
		if _, pressed := b.used[t.Unix()]; pressed {
			continue
		}
		out.Buttons = append(out.Buttons, domain.Button{Label: t.In(tz).Format(clock), Data: InfoData(loc.ID, t)})
	}
	return out
}

// Sync приводит доски в соответствие с таблицей арен: публикует новые рейды,
// обновляет вылупившиеся и число кнопок, удаляет закончившиеся.
func (s *Service) Sync(ctx context.Context, now time.Time) error {
	var errs []error
	seen := make(map[string]struct{})
	for _, chID := range s.channelIDs() {
		ref := s.channels[chID]
		for _, loc := range s.table.Locations(ref.region.Name) {
			e := s.table.Encounter(loc.ID)
			if e == nil || !e.Scanned || e.Expired(now) || !ref.info.HasLevel(e.Level) {
				continue
			}
			key := boardKey(chID, loc.ID)
			seen[key] = struct{}{}
			if err := s.syncBoard(ctx, ref, key, loc, *e, now); err != nil {
				errs = append(errs, fmt.Errorf("доска %s: %w", key, err))
			}
		}
	}

	s.mu.Lock()
	var stale []*Board
	for key, b := range s.boards {
		if _, ok := seen[key]; !ok || !b.Encounter.End.After(now) {
			stale = append(stale, b)
			delete(s.boards, key)
		}
	}
	s.mu.Unlock()
	for _, b := range stale {
		if err := s.platform.Delete(ctx, b.ChannelID, b.MessageID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, fmt.Errorf("удаление доски %s: %w", b.MessageID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) syncBoard(ctx context.Context, ref infoRef, key string, loc domain.Location, e domain.Encounter, now time.Time) error {
	var times []time.Time
	if len(ref.info.PostTo) > 0 {
		times = SuggestTimes(e.Start, e.End, now)
	}

	s.mu.Lock()
	b, ok := s.boards[key]
	s.mu.Unlock()

	if ok && !b.Encounter.Start.Equal(e.Start) {
		if err := s.platform.Delete(ctx, b.ChannelID, b.MessageID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("удаление старой доски: %w", err)
		}
		ok = false
	}

	if !ok {
		b = &Board{ChannelID: ref.info.ID, Location: loc, Encounter: e, Times: times, used: make(map[int64]struct{})}
		id, err := s.platform.Send(ctx, b.ChannelID, Render(b, s.tr, s.tz))
		if err != nil {
			s.mu.Lock()
			delete(s.boards, key)
			s.mu.Unlock()
			return fmt.Errorf("отправка доски: %w", err)
		}
		b.MessageID = id
		s.mu.Lock()
		s.boards[key] = b
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	hatched := b.Encounter.Boss == nil && e.Boss != nil
	changed := hatched || !b.Encounter.Equal(e) || len(b.Times) != len(times)
	if changed {
		b.Encounter = e
		b.Times = times
	}
	msg := Render(b, s.tr, s.tz)
	s.mu.Unlock()
	if !changed {
		return nil
	}
	if err := s.platform.Edit(ctx, b.ChannelID, b.MessageID, msg); err != nil {
		return fmt.Errorf("обновление доски: %w", err)
	}
	return nil
}

// Press обрабатывает нажатие кнопки времени: создаёт объявления во всех
// целевых каналах. Нажатие позже чем за 4 минуты до времени игнорируется.
func (s *Service) Press(ctx context.Context, channelID, messageID, userID, userName, data string, now time.Time) error {
	locationID, start, ok := ParseInfoData(data)
	if !ok {
		return nil
	}
	ref, ok := s.channels[channelID]
	if !ok || len(ref.info.PostTo) == 0 {
		return nil
	}

	s.mu.Lock()
	b, ok := s.boards[boardKey(channelID, locationID)]
	var msg domain.Rendered
	if ok {
		b.used[start.Unix()] = struct{}{}
		msg = Render(b, s.tr, s.tz)
	}
	s.mu.Unlock()
	if ok {
		if err := s.platform.Edit(ctx, channelID, messageID, msg); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Str("message_id", messageID).Msg("raidinfo: не удалось обновить доску")
		}
	}

	if start.Before(now.Add(PressLead)) {
		return nil
	}
	created, err := s.scheduler.CreateScheduled(ctx, raids.ScheduleRequest{
		GuildID:    ref.region.GuildID,
		LocationID: locationID,
		Start:      start.In(s.tz),
		UserID:     userID,
		UserName:   userName,
		Targets:    ref.info.PostTo,
	})
	s.log.Info().Str("location_id", locationID).Int("created", len(created)).Msg("raidinfo: рейд назначен с доски")
	if err != nil {
		return fmt.Errorf("назначение рейда: %w", err)
	}
	return nil
}

// Boards возвращает число активных досок.
func (s *Service) Boards() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boards)
}

func (s *Service) channelIDs() []string {
	ids := make([]string, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
