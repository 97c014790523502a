package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"taubsi/internal/adapters/telegram"
	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
	"taubsi/internal/usecase/ledger"
	"taubsi/internal/usecase/raids"
)

const (
	errorTTL      = 20 * time.Second
	handleTimeout = 30 * time.Second
	raidCommand   = "raid"
)

// Raids описывает операции объявлений, доступные из апдейтов бота.
type Raids interface {
	HandleMessage(ctx context.Context, msg domain.InboundMessage) error
	HandleLedgerEvent(ctx context.Context, messageID, userID string, kind ledger.EventKind, amount int) error
	HandleDeleteControl(ctx context.Context, messageID, userID string) error
	Choose(ctx context.Context, promptID, userID string, index int) (*raids.Announcement, error)
	IsRaidChannel(channelID string) bool
}

// Boards обрабатывает нажатия на досках рейдов.
type Boards interface {
	Press(ctx context.Context, channelID, messageID, userID, userName, data string, now time.Time) error
}

// Answerer подтверждает нажатия кнопок.
type Answerer interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler обслуживает апдейты бота из вебхука или long polling.
type Handler struct {
	api      Answerer
	raids    Raids
	boards   Boards
	platform domain.Platform
	tr       domain.Translator
	log      zerolog.Logger
	now      func() time.Time
	errorTTL time.Duration
}

// NewHandler создаёт обработчик. boards может быть nil.
func NewHandler(api Answerer, r Raids, boards Boards, platform domain.Platform, tr domain.Translator, logger zerolog.Logger) *Handler {
	return &Handler{
		api:      api,
		raids:    r,
		boards:   boards,
		platform: platform,
		tr:       tr,
		log:      logger,
		now:      time.Now,
		errorTTL: errorTTL,
	}
}

// ServeHTTP принимает апдейт вебхука.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handleTimeout)
	defer cancel()
	h.HandleUpdate(ctx, upd)
	w.WriteHeader(http.StatusOK)
}

// Poll обрабатывает апдейты long polling до отмены контекста или закрытия канала.
func (h *Handler) Poll(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			uctx, cancel := context.WithTimeout(ctx, handleTimeout)
			h.HandleUpdate(uctx, upd)
			cancel()
		}
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot || msg.Chat == nil || msg.Chat.IsPrivate() {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	text := msg.Text
	if msg.IsCommand() {
		if msg.Command() != raidCommand {
			return
		}
		if !h.raids.IsRaidChannel(chatID) {
			h.report(ctx, chatID, raids.ErrWrongChannel)
			return
		}
		text = msg.CommandArguments()
	}
	err := h.raids.HandleMessage(ctx, domain.InboundMessage{
		GuildID:   chatID,
		ChannelID: chatID,
		MessageID: telegram.MessageID(msg.Chat.ID, msg.MessageID),
		AuthorID:  strconv.FormatInt(msg.From.ID, 10),
		Text:      strings.TrimSpace(text),
	})
	h.report(ctx, chatID, err)
}

// report показывает отказ ввода в чате и удаляет его через errorTTL.
func (h *Handler) report(ctx context.Context, chatID string, err error) {
	if err == nil {
		return
	}
	key, ok := raids.LocaleKey(err)
	if !ok {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("bot: ошибка обработки сообщения")
		return
	}
	id, sendErr := h.platform.Send(ctx, chatID, domain.Rendered{Description: "❌ " + h.tr.T(key)})
	if sendErr != nil {
		h.log.Warn().Err(sendErr).Msg("bot: не удалось отправить отказ")
		return
	}
	time.AfterFunc(h.errorTTL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := h.platform.Delete(ctx, chatID, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			h.log.Debug().Err(err).Msg("bot: не удалось удалить отказ")
		}
	})
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	start := time.Now()
	_, err := h.api.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", cb.ID, start, err)
	if err != nil {
		h.log.Warn().Err(err).Msg("bot: не удалось ответить на нажатие")
	}
	if cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
		return
	}
	chatID := strconv.FormatInt(cb.Message.Chat.ID, 10)
	messageID := telegram.MessageID(cb.Message.Chat.ID, cb.Message.MessageID)
	userID := strconv.FormatInt(cb.From.ID, 10)
	name := strings.TrimSpace(cb.From.FirstName + " " + cb.From.LastName)
	if err := h.HandleCallbackData(ctx, chatID, messageID, userID, name, cb.Data); err != nil {
		h.log.Error().Err(err).Str("message_id", messageID).Msg("bot: ошибка обработки кнопки")
	}
}

// HandleCallbackData разбирает данные нажатой кнопки.
func (h *Handler) HandleCallbackData(ctx context.Context, chatID, messageID, userID, userName, data string) error {
	switch {
	case data == raids.DeleteData:
		return h.raids.HandleDeleteControl(ctx, messageID, userID)
	case strings.HasPrefix(data, "choice:"):
		promptID, index, ok := raids.ParseChoiceData(data)
		if !ok {
			return nil
		}
		_, err := h.raids.Choose(ctx, promptID, userID, index)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	case strings.HasPrefix(data, "info:"):
		if h.boards == nil {
			return nil
		}
		return h.boards.Press(ctx, chatID, messageID, userID, userName, data, h.now())
	}
	if kind, amount, ok := raids.ParseLedgerData(data); ok {
		return h.raids.HandleLedgerEvent(ctx, messageID, userID, kind, amount)
	}
	return nil
}
