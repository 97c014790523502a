package raids

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
	"taubsi/internal/usecase/ledger"
)

const (
	ledgerPrefix = "raid"
	// DeleteData помечает кнопку удаления объявления.
	DeleteData = ledgerPrefix + ":delete"
)

// LedgerData кодирует кнопку журнала.
func LedgerData(kind ledger.EventKind, amount int) string {
	return fmt.Sprintf("%s:%d:%d", ledgerPrefix, int(kind), amount)
}

// ParseLedgerData разбирает данные кнопки журнала.
func ParseLedgerData(data string) (kind ledger.EventKind, amount int, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != ledgerPrefix {
		return 0, 0, false
	}
	k, err := strconv.Atoi(parts[1])
	if err != nil || k < int(ledger.EventAmount) || k > int(ledger.EventRemoteToggle) {
		return 0, 0, false
	}
	amount, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	return ledger.EventKind(k), amount, true
}

// HandleLedgerEvent применяет событие участника к объявлению.
// Событие для неизвестного или завершённого объявления ничего не делает.
func (s *Service) HandleLedgerEvent(ctx context.Context, messageID, userID string, kind ledger.EventKind, amount int) error {
	a, ok := s.Get(messageID)
	if !ok {
		return nil
	}
	member, err := s.platform.Member(ctx, a.GuildID, userID)
	if err != nil {
		member = domain.Member{UserID: userID}
		s.log.Debug().Err(err).Str("user_id", userID).Msg("raids: участник чата не найден")
	}
	member.UserID = userID

	a.mu.Lock()
	if a.state == StateRetired {
		a.mu.Unlock()
		return nil
	}
	notice, notify := a.ledger.Apply(ledger.Event{Kind: kind, Member: member, Amount: amount})
	p, touched := a.ledger.Participant(userID)
	var recipients []domain.Participant
	if notify {
		recipients = a.ledger.Recipients(userID)
	}
	s.refreshLocked(ctx, a)
	if touched {
		if a.groupID != "" {
			if err := s.platform.SetGroupMember(ctx, a.GuildID, a.groupID, userID, p.Amount > 0); err != nil && !errors.Is(err, domain.ErrNotFound) {
				l := s.logFor(a)
				l.Warn().Err(err).Str("user_id", userID).Msg("raids: не удалось обновить роль участника")
			}
		}
		if err := s.repo.UpsertParticipant(ctx, a.ID, p); err != nil {
			l := s.logFor(a)
			l.Error().Err(err).Str("user_id", userID).Msg("raids: не удалось сохранить участника")
		}
	}
	a.mu.Unlock()

	metrics.IncLedgerEvent(kind.String())
	if notify {
		s.notify(ctx, a, recipients, s.noticeText(notice), domain.NotifyLedger)
	}
	return nil
}

func (s *Service) noticeText(n ledger.Notice) string {
	name := displayName(n.Actor)
	switch n.Kind {
	case ledger.NoticeJoined:
		return fmt.Sprintf("▶️ %s (%d)", name, n.Amount)
	case ledger.NoticeLeft:
		return fmt.Sprintf("❌ %s (%d)", name, n.Amount)
	case ledger.NoticeLate:
		return s.emojis.Late + " " + name
	default:
		return s.tr.Tf("notify_on_time", name)
	}
}

// HandleDeleteControl удаляет объявление по кнопке автора в окне удаления.
func (s *Service) HandleDeleteControl(ctx context.Context, messageID, userID string) error {
	a, ok := s.Get(messageID)
	if !ok {
		return nil
	}
	a.mu.Lock()
	allowed := a.deleteControl && a.AuthorID == userID && a.state != StateRetired
	a.mu.Unlock()
	if !allowed {
		return nil
	}
	if err := s.platform.Delete(ctx, a.ChannelID, a.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("удаление объявления: %w", err)
	}
	return s.HandleMessageDeleted(ctx, messageID)
}

// HandleMessageDeleted снимает объявление, чьё сообщение удалено,
// вместе с ролью, исходным сообщением и записью в хранилище.
func (s *Service) HandleMessageDeleted(ctx context.Context, messageID string) error {
	if s.dropPromptByMessage(messageID) {
		return nil
	}
	a, ok := s.unregister(messageID)
	if !ok {
		return nil
	}
	if a.InitMessageID != "" {
		if err := s.platform.Delete(ctx, a.ChannelID, a.InitMessageID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			l := s.logFor(a)
			l.Debug().Err(err).Msg("raids: исходное сообщение не удалено")
		}
	}
	s.retire(ctx, a, retireDeleted)
	return nil
}

// notify ставит личные уведомления в очередь.
func (s *Service) notify(ctx context.Context, a *Announcement, recipients []domain.Participant, text string, cause domain.NotificationCause) {
	if s.notifier == nil || len(recipients) == 0 {
		return
	}
	url := s.platform.MessageURL(a.GuildID, a.ChannelID, a.ID)
	now := s.now()
	for _, p := range recipients {
		job := domain.NotificationJob{
			ID:        uuid.NewString(),
			UserID:    p.UserID,
			Title:     a.Location.Name,
			URL:       url,
			Text:      text,
			Cause:     cause,
			CreatedAt: now,
		}
		if err := s.notifier.Enqueue(ctx, job); err != nil {
			metrics.IncNotification("enqueue_error")
			l := s.logFor(a)
			l.Warn().Err(err).Str("user_id", p.UserID).Msg("raids: уведомление не поставлено в очередь")
		}
	}
}
