package raids

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
	"taubsi/internal/usecase/extract"
	"taubsi/internal/usecase/matcher"
)

// CommandRequest описывает вызов команды /raid.
type CommandRequest struct {
	ChannelID    string
	UserID       string
	LocationName string
	Time         string
}

// ScheduleRequest описывает нажатие кнопки времени на доске рейдов.
type ScheduleRequest struct {
	GuildID    string
	LocationID string
	Start      time.Time
	UserID     string
	UserName   string
	Targets    []string
}

type createParams struct {
	channelID     string
	guildID       string
	location      domain.Location
	level         int
	event         bool
	start         time.Time
	authorID      string
	initMessageID string
	footerPrefix  string
	source        string
}

// HandleMessage разбирает сообщение из канала рейдов и создаёт объявление
// или подсказку выбора арены. Сообщения вне каналов рейдов игнорируются.
func (s *Service) HandleMessage(ctx context.Context, msg domain.InboundMessage) error {
	ref, ok := s.channels[msg.ChannelID]
	if !ok {
		return nil
	}
	now := s.now()
	locations := s.table.Locations(ref.region.Name)

	res := extract.Extract(msg.Text, now, ref.channel.Event)
	if !res.Found {
		cands := s.matcher.Match(msg.Text, locations)
		if len(cands) > 0 && cands[0].Score > s.cfg.TimeMissingScore {
			return ErrInvalidTime
		}
		return nil
	}

	cands := s.shortlist(s.matcher.Match(res.Residual, locations))
	params := createParams{
		channelID:     msg.ChannelID,
		guildID:       ref.region.GuildID,
		level:         ref.channel.Level,
		event:         ref.channel.Event,
		start:         res.Start,
		authorID:      msg.AuthorID,
		initMessageID: msg.MessageID,
		source:        "message",
	}
	switch len(cands) {
	case 0:
		return ErrNoLocation
	case 1:
		params.location = cands[0].Location
		_, err := s.create(ctx, params)
		return err
	}
	return s.prompt(ctx, params, cands)
}

func (s *Service) shortlist(cands []matcher.Candidate) []matcher.Candidate {
	var out []matcher.Candidate
	for _, c := range matcher.Preferred(cands) {
		if c.Score < s.cfg.PromptCutoff {
			continue
		}
		out = append(out, c)
		if len(out) == s.cfg.MaxCandidates {
			break
		}
	}
	return out
}

// CreateFromCommand создаёт объявление по точному имени арены.
func (s *Service) CreateFromCommand(ctx context.Context, req CommandRequest) (*Announcement, error) {
	ref, ok := s.channels[req.ChannelID]
	if !ok {
		return nil, ErrWrongChannel
	}
	loc, ok := s.findByName(ref.region.Name, req.LocationName)
	if !ok {
		return nil, ErrUnknownLocation
	}
	res := extract.Extract(req.Time, s.now(), ref.channel.Event)
	if !res.Found {
		return nil, ErrInvalidTime
	}
	return s.create(ctx, createParams{
		channelID: req.ChannelID,
		guildID:   ref.region.GuildID,
		location:  loc,
		level:     ref.channel.Level,
		event:     ref.channel.Event,
		start:     res.Start,
		authorID:  req.UserID,
		source:    "command",
	})
}

func (s *Service) findByName(region, name string) (domain.Location, bool) {
	want := matcher.Normalize(name)
	for _, loc := range s.table.Locations(region) {
		if loc.ID == name || matcher.Normalize(loc.Name) == want {
			return loc, true
		}
	}
	return domain.Location{}, false
}

// CreateScheduled создаёт объявления во всех целевых каналах доски рейдов.
func (s *Service) CreateScheduled(ctx context.Context, req ScheduleRequest) ([]*Announcement, error) {
	loc, ok := s.table.Location(req.LocationID)
	if !ok {
		return nil, ErrUnknownLocation
	}
	level := 0
	if e := s.table.Encounter(loc.ID); e != nil {
		level = e.Level
	}

	var (
		out  []*Announcement
		errs []error
	)
	for _, target := range req.Targets {
		params := createParams{
			channelID:    target,
			guildID:      req.GuildID,
			location:     loc,
			level:        level,
			start:        req.Start,
			authorID:     req.UserID,
			footerPrefix: s.tr.Tf("scheduled_by", req.UserName) + "\n",
			source:       "raidinfo",
		}
		if ref, ok := s.channels[target]; ok {
			params.guildID = ref.region.GuildID
			params.event = ref.channel.Event
			if params.level == 0 {
				params.level = ref.channel.Level
			}
		}
		a, err := s.create(ctx, params)
		if err != nil {
			errs = append(errs, fmt.Errorf("канал %s: %w", target, err))
			continue
		}
		out = append(out, a)
	}
	return out, errors.Join(errs...)
}

func (s *Service) create(ctx context.Context, p createParams) (*Announcement, error) {
	now := s.now()
	a := newAnnouncement(s.cfg.Limits)
	a.ChannelID = p.channelID
	a.GuildID = p.guildID
	a.InitMessageID = p.initMessageID
	a.AuthorID = p.authorID
	a.Location = p.location
	a.Level = p.level
	a.Start = p.start
	a.Event = p.event
	a.FooterPrefix = p.footerPrefix
	a.CreatedAt = now
	a.encounter = s.table.Resolve(s.resolver, p.location.ID, p.level, now)
	a.deleteControl = true

	var others []*Announcement
	for _, o := range s.Live() {
		if overlaps(a, o, s.cfg.Window) {
			others = append(others, o)
			a.static[s.tr.Tf("warn_other_times", o.Start.In(s.cfg.TZ).Format(clock))] = struct{}{}
		}
	}

	groupID, err := s.platform.CreateGroup(ctx, p.guildID, fmt.Sprintf("%s (%s)", p.location.Name, p.start.In(s.cfg.TZ).Format(clock)))
	if err != nil {
		s.log.Warn().Err(err).Str("location", p.location.Name).Msg("raids: не удалось создать роль")
	}

	a.mu.Lock()
	a.groupID = groupID
	if s.difficulty != nil {
		a.difficulty = s.difficulty.Difficulty(ctx, a.encounter, 0)
	}
	id, err := s.platform.Send(ctx, p.channelID, s.renderLocked(a))
	if err != nil {
		a.mu.Unlock()
		if groupID != "" {
			_ = s.platform.DeleteGroup(ctx, p.guildID, groupID)
		}
		return nil, fmt.Errorf("отправка объявления: %w", err)
	}
	a.ID = id
	a.state = StateLive
	s.persistLocked(ctx, a)
	a.mu.Unlock()
	s.register(a)

	for _, o := range others {
		o.mu.Lock()
		if o.state != StateRetired {
			o.static[s.tr.Tf("warn_other_times", a.Start.In(s.cfg.TZ).Format(clock))] = struct{}{}
			s.refreshLocked(ctx, o)
		}
		o.mu.Unlock()
	}

	metrics.IncCreated(p.source)
	l := s.logFor(a)
	l.Info().Time("start", a.Start).Int("level", a.encounter.Level).Msg("raids: объявление создано")
	return a, nil
}
