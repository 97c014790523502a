package raids

import (
	"context"
	"errors"
	"fmt"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

// Restore поднимает предстоящие объявления из хранилища и перерисовывает их.
// Объявления, чьё сообщение удалено, вычищаются из хранилища.
func (s *Service) Restore(ctx context.Context) (int, error) {
	now := s.now()
	records, err := s.repo.ListUpcoming(ctx, now.Add(-s.cfg.Grace))
	if err != nil {
		return 0, fmt.Errorf("загрузка рейдов: %w", err)
	}

	var restored []*Announcement
	for _, rec := range records {
		a, err := s.restoreOne(ctx, rec)
		if err != nil {
			s.log.Warn().Err(err).Str("message_id", rec.MessageID).Msg("raids: объявление не восстановлено")
			continue
		}
		restored = append(restored, a)
	}

	for i, a := range restored {
		for _, o := range restored[i+1:] {
			if overlaps(a, o, s.cfg.Window) {
				a.static[s.tr.Tf("warn_other_times", o.Start.In(s.cfg.TZ).Format(clock))] = struct{}{}
				o.static[s.tr.Tf("warn_other_times", a.Start.In(s.cfg.TZ).Format(clock))] = struct{}{}
			}
		}
	}

	count := 0
	for _, a := range restored {
		a.mu.Lock()
		if s.difficulty != nil {
			a.difficulty = s.difficulty.Difficulty(ctx, a.encounter, a.ledger.Total())
		}
		err := s.platform.Edit(ctx, a.ChannelID, a.ID, s.renderLocked(a))
		a.mu.Unlock()
		if errors.Is(err, domain.ErrNotFound) {
			if err := s.repo.DeleteRaid(ctx, a.ID); err != nil {
				s.log.Error().Err(err).Str("message_id", a.ID).Msg("raids: не удалось удалить запись")
			}
			continue
		}
		if err != nil {
			l := s.logFor(a)
			l.Warn().Err(err).Msg("raids: не удалось обновить восстановленное сообщение")
		}
		s.register(a)
		metrics.AnnouncementsLive.Inc()
		count++
	}
	s.log.Info().Int("restored", count).Int("stored", len(records)).Msg("raids: объявления восстановлены")
	return count, nil
}

func (s *Service) restoreOne(ctx context.Context, rec domain.RaidRecord) (*Announcement, error) {
	loc, ok := s.table.Location(rec.LocationID)
	if !ok {
		return nil, ErrUnknownLocation
	}
	now := s.now()

	a := newAnnouncement(s.cfg.Limits)
	a.ID = rec.MessageID
	a.ChannelID = rec.ChannelID
	a.GuildID = rec.GuildID
	a.InitMessageID = rec.InitMessageID
	a.AuthorID = rec.AuthorID
	a.Location = loc
	a.Level = rec.Level
	a.Start = rec.Start.In(s.cfg.TZ)
	a.groupID = rec.GroupID
	if ref, ok := s.channels[rec.ChannelID]; ok {
		a.Event = ref.channel.Event
		if a.GuildID == "" {
			a.GuildID = ref.region.GuildID
		}
	}

	a.encounter = s.table.Resolve(s.resolver, loc.ID, rec.Level, now)
	if !a.encounter.Scanned && rec.RaidStart != nil && rec.RaidEnd != nil && rec.RaidEnd.After(now) {
		a.encounter = s.resolver.FromRow(domain.RaidRow{
			GymID:     rec.LocationID,
			Level:     rec.Level,
			PokemonID: rec.BossID,
			Form:      rec.BossForm,
			Start:     *rec.RaidStart,
			End:       *rec.RaidEnd,
		})
	}

	participants, err := s.repo.ListParticipants(ctx, rec.MessageID)
	if err != nil {
		return nil, fmt.Errorf("загрузка участников: %w", err)
	}
	for _, p := range participants {
		if m, err := s.platform.Member(ctx, a.GuildID, p.UserID); err == nil {
			p.DisplayName = m.DisplayName
			p.Team = m.Team
			p.Subscriber = m.Subscriber
		}
		a.ledger.Restore(p)
	}

	a.state = StateLive
	if !now.Before(a.Start.Add(-s.cfg.WarnBefore)) {
		a.state = StateWarned
	}
	return a, nil
}
