package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

// API описывает часть клиента Bot API, которой пользуется адаптер.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Platform реализует контракт чат-платформы поверх Bot API.
// Идентификатор сообщения имеет вид "<chat>:<message>".
// Группы участников в Telegram не поддерживаются, операции с ними ничего не делают.
type Platform struct {
	api    API
	emojis domain.Emojis
	tr     domain.Translator
	tz     *time.Location
	log    zerolog.Logger

	mu       sync.Mutex
	rendered map[string]domain.Rendered
}

var _ domain.Platform = (*Platform)(nil)

// NewPlatform создаёт адаптер Telegram.
func NewPlatform(api API, emojis domain.Emojis, tr domain.Translator, tz *time.Location, logger zerolog.Logger) *Platform {
	if tz == nil {
		tz = time.UTC
	}
	return &Platform{api: api, emojis: emojis, tr: tr, tz: tz, log: logger, rendered: make(map[string]domain.Rendered)}
}

// MessageID собирает идентификатор сообщения.
func MessageID(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

// ParseMessageID разбирает идентификатор сообщения.
func ParseMessageID(id string) (chatID int64, messageID int, err error) {
	chat, msg, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("неверный идентификатор сообщения %q", id)
	}
	if chatID, err = strconv.ParseInt(chat, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("неверный чат в %q: %w", id, err)
	}
	if messageID, err = strconv.Atoi(msg); err != nil {
		return 0, 0, fmt.Errorf("неверное сообщение в %q: %w", id, err)
	}
	return chatID, messageID, nil
}

func parseChat(id string) (int64, error) {
	chatID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("неверный чат %q: %w", id, err)
	}
	return chatID, nil
}

func observe(op, target string, start time.Time, err error) {
	metrics.ObserveNetworkRequest("telegram_bot", op, target, start, err)
}

var goneMarkers = []string{
	"message to edit not found",
	"message to delete not found",
	"message can't be deleted",
	"chat not found",
	"user not found",
	"bot was blocked by the user",
	"bot can't initiate conversation",
	"user is deactivated",
}

// wrap приводит ошибки удалённых объектов к domain.ErrNotFound.
// Правка без изменений ошибкой не считается.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		if strings.Contains(msg, "message is not modified") {
			return nil
		}
		for _, m := range goneMarkers {
			if strings.Contains(msg, m) {
				return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// remember хранит последнее содержимое сообщений с элементами управления,
// чтобы снимать их без полной перерисовки.
func (p *Platform) remember(id string, msg domain.Rendered) {
	if !msg.LedgerControls && !msg.DeleteControl {
		p.forget(id)
		return
	}
	p.mu.Lock()
	p.rendered[id] = msg
	p.mu.Unlock()
}

func (p *Platform) forget(id string) {
	p.mu.Lock()
	delete(p.rendered, id)
	p.mu.Unlock()
}

func (p *Platform) Send(_ context.Context, channelID string, msg domain.Rendered) (string, error) {
	chatID, err := parseChat(channelID)
	if err != nil {
		return "", err
	}
	out := tgbotapi.NewMessage(chatID, Format(msg, p.tz))
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true
	if kb := Keyboard(msg, p.emojis, p.tr); len(kb.InlineKeyboard) > 0 {
		out.ReplyMarkup = kb
	}
	start := time.Now()
	sent, err := p.api.Send(out)
	observe("send_message", channelID, start, err)
	if err != nil {
		return "", wrap("отправка сообщения", err)
	}
	id := MessageID(chatID, sent.MessageID)
	p.remember(id, msg)
	return id, nil
}

func (p *Platform) Edit(_ context.Context, channelID, messageID string, msg domain.Rendered) error {
	chatID, msgID, err := ParseMessageID(messageID)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, Format(msg, p.tz), Keyboard(msg, p.emojis, p.tr))
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	start := time.Now()
	_, err = p.api.Request(edit)
	observe("edit_message", channelID, start, err)
	if err = wrap("изменение сообщения", err); err != nil {
		return err
	}
	p.remember(messageID, msg)
	return nil
}

func (p *Platform) Delete(_ context.Context, channelID, messageID string) error {
	chatID, msgID, err := ParseMessageID(messageID)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = p.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID))
	observe("delete_message", channelID, start, err)
	p.forget(messageID)
	return wrap("удаление сообщения", err)
}

func (p *Platform) editMarkup(channelID, messageID string, strip func(*domain.Rendered)) error {
	chatID, msgID, err := ParseMessageID(messageID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	msg := p.rendered[messageID]
	strip(&msg)
	p.rendered[messageID] = msg
	p.mu.Unlock()

	start := time.Now()
	_, err = p.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, Keyboard(msg, p.emojis, p.tr)))
	observe("edit_markup", channelID, start, err)
	return wrap("изменение клавиатуры", err)
}

// ClearControls убирает элементы журнала и удаления, кнопки-ссылки остаются.
func (p *Platform) ClearControls(_ context.Context, channelID, messageID string) error {
	err := p.editMarkup(channelID, messageID, func(m *domain.Rendered) {
		m.LedgerControls = false
		m.DeleteControl = false
	})
	p.forget(messageID)
	return err
}

func (p *Platform) RemoveDeleteControl(_ context.Context, channelID, messageID string) error {
	return p.editMarkup(channelID, messageID, func(m *domain.Rendered) { m.DeleteControl = false })
}

func (p *Platform) CreateGroup(context.Context, string, string) (string, error) { return "", nil }

func (p *Platform) DeleteGroup(context.Context, string, string) error { return nil }

func (p *Platform) SetGroupMember(context.Context, string, string, string, bool) error { return nil }

// Member читает участника группы. Команда берётся из подписи администратора,
// личные уведомления получают все, кто запускал бота.
func (p *Platform) Member(_ context.Context, guildID, userID string) (domain.Member, error) {
	chatID, err := parseChat(guildID)
	if err != nil {
		return domain.Member{}, err
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return domain.Member{}, fmt.Errorf("неверный пользователь %q: %w", userID, err)
	}
	start := time.Now()
	cm, err := p.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: uid},
	})
	observe("get_chat_member", guildID, start, err)
	if err != nil {
		return domain.Member{}, wrap("чтение участника", err)
	}
	out := domain.Member{UserID: userID, Subscriber: true}
	if cm.User != nil {
		out.DisplayName = strings.TrimSpace(cm.User.FirstName + " " + cm.User.LastName)
		if out.DisplayName == "" {
			out.DisplayName = cm.User.UserName
		}
	}
	if team, ok := domain.ParseTeam(cm.CustomTitle); ok {
		out.Team = team
	}
	return out, nil
}

func (p *Platform) SendDirect(ctx context.Context, userID string, msg domain.Rendered) error {
	_, err := p.Send(ctx, userID, msg)
	return err
}

// MessageURL строит ссылку на сообщение супергруппы. Для прочих чатов ссылки нет.
func (p *Platform) MessageURL(_, channelID, messageID string) string {
	_, msgID, err := ParseMessageID(messageID)
	if err != nil || !strings.HasPrefix(channelID, "-100") {
		return ""
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", strings.TrimPrefix(channelID, "-100"), msgID)
}
