package raids

import (
	"context"
	"errors"
	"time"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

const (
	retireExpired = "expired"
	retireDeleted = "deleted"
)

// Retire завершает объявление после начала рейда. Запись в хранилище остаётся.
func (s *Service) Retire(ctx context.Context, a *Announcement) {
	s.unregister(a.ID)
	s.retire(ctx, a, retireExpired)
}

func (s *Service) retire(ctx context.Context, a *Announcement, reason string) {
	a.mu.Lock()
	if a.state == StateRetired {
		a.mu.Unlock()
		return
	}
	a.state = StateRetired
	a.deleteControl = false
	groupID := a.groupID
	a.mu.Unlock()

	l := s.logFor(a)
	if reason == retireExpired {
		if err := s.platform.ClearControls(ctx, a.ChannelID, a.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			l.Warn().Err(err).Msg("raids: не удалось снять элементы управления")
		}
	}
	if groupID != "" {
		if err := s.platform.DeleteGroup(ctx, a.GuildID, groupID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			l.Warn().Err(err).Msg("raids: не удалось удалить роль")
		}
	}
	if reason == retireDeleted {
		if err := s.repo.DeleteRaid(ctx, a.ID); err != nil {
			l.Error().Err(err).Msg("raids: не удалось удалить запись")
		}
	}
	metrics.IncRetired(reason)
	l.Info().Str("reason", reason).Msg("raids: объявление завершено")
}

// Expired сообщает, что время объявления прошло с учётом запаса.
func (s *Service) Expired(a *Announcement, now time.Time) bool {
	return now.After(a.Start.Add(s.cfg.Grace))
}

// InWarnWindow сообщает, что до начала осталось от WarnBefore-1m до WarnBefore.
func (s *Service) InWarnWindow(a *Announcement, now time.Time) bool {
	from := a.Start.Add(-s.cfg.WarnBefore)
	to := from.Add(time.Minute)
	return now.After(from) && now.Before(to)
}

// WarnSoon один раз напоминает участникам о скором начале.
func (s *Service) WarnSoon(ctx context.Context, a *Announcement) bool {
	a.mu.Lock()
	if a.state != StateLive {
		a.mu.Unlock()
		return false
	}
	a.state = StateWarned
	recipients := a.ledger.Recipients("")
	a.mu.Unlock()

	s.notify(ctx, a, recipients, s.tr.T("notify_raid_starts"), domain.NotifyStartsSoon)
	return true
}

// TrimDeleteControl убирает кнопку удаления после окна удаления.
func (s *Service) TrimDeleteControl(ctx context.Context, a *Announcement, now time.Time) bool {
	a.mu.Lock()
	if !a.deleteControl || now.Sub(a.CreatedAt) < s.cfg.DeleteWindow {
		a.mu.Unlock()
		return false
	}
	a.deleteControl = false
	a.mu.Unlock()

	if err := s.platform.RemoveDeleteControl(ctx, a.ChannelID, a.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		l := s.logFor(a)
		l.Warn().Err(err).Msg("raids: не удалось убрать кнопку удаления")
	}
	return true
}

// PatchEncounter заменяет показываемый рейд текущим рейдом арены.
// Отсканированный рейд с известными атаками не перезаписывается.
// При появлении босса подписчики получают уведомление до обновления сообщения.
func (s *Service) PatchEncounter(ctx context.Context, a *Announcement, now time.Time) bool {
	if a.Event {
		return false
	}
	current := s.table.Encounter(a.Location.ID)
	if current == nil || current.Expired(now) {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateRetired {
		return false
	}
	shown := a.encounter
	if shown.Scanned && !shown.Moveset.Empty() {
		return false
	}
	if shown.Equal(*current) {
		return false
	}

	if shown.Boss == nil && current.Boss != nil {
		s.notify(ctx, a, a.ledger.Recipients(""), s.tr.Tf("notify_hatched", current.Boss.Name), domain.NotifyHatched)
	}
	a.encounter = *current
	s.refreshLocked(ctx, a)
	s.persistLocked(ctx, a)
	l := s.logFor(a)
	l.Info().Bool("scanned", current.Scanned).Msg("raids: рейд обновлён")
	return true
}
