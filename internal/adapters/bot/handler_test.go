package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/ledger"
	"taubsi/internal/usecase/raids"
)

type stubRaids struct {
	mu       sync.Mutex
	messages []domain.InboundMessage
	events   []string
	err      error
}

func (s *stubRaids) HandleMessage(_ context.Context, msg domain.InboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *stubRaids) HandleLedgerEvent(_ context.Context, messageID, userID string, kind ledger.EventKind, amount int) error {
	s.events = append(s.events, messageID+"|"+userID+"|"+kind.String())
	return nil
}

func (s *stubRaids) HandleDeleteControl(_ context.Context, messageID, userID string) error {
	s.events = append(s.events, messageID+"|"+userID+"|delete")
	return nil
}

func (s *stubRaids) Choose(_ context.Context, promptID, userID string, index int) (*raids.Announcement, error) {
	s.events = append(s.events, promptID+"|"+userID+"|choose")
	return nil, nil
}

func (s *stubRaids) IsRaidChannel(channelID string) bool { return channelID == "-1001" }

type stubAPI struct{ answered []string }

func (a *stubAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		a.answered = append(a.answered, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type stubPlatform struct {
	domain.Platform
	sent []domain.Rendered
}

func (p *stubPlatform) Send(_ context.Context, _ string, msg domain.Rendered) (string, error) {
	p.sent = append(p.sent, msg)
	return "-1001:99", nil
}

func (p *stubPlatform) Delete(context.Context, string, string) error { return nil }

type keyTranslator struct{}

func (keyTranslator) T(key string) string { return key }

func (keyTranslator) Tf(key string, _ ...any) string { return key }

func newHandler(r *stubRaids, p *stubPlatform, api *stubAPI) *Handler {
	h := NewHandler(api, r, nil, p, keyTranslator{}, zerolog.Nop())
	h.errorTTL = time.Hour
	return h
}

func command(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: 42, FirstName: "Ash"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "supergroup"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len("/raid")}},
	}
}

func TestRaidCommand(t *testing.T) {
	r := &stubRaids{}
	p := &stubPlatform{}
	h := newHandler(r, p, &stubAPI{})

	h.HandleUpdate(context.Background(), tgbotapi.Update{Message: command(-1001, "/raid Rathaus 18:30")})
	if len(r.messages) != 1 {
		t.Fatalf("ожидали одно сообщение, получили %d", len(r.messages))
	}
	got := r.messages[0]
	if got.Text != "Rathaus 18:30" || got.MessageID != "-1001:5" || got.AuthorID != "42" || got.ChannelID != "-1001" {
		t.Fatalf("неверное сообщение: %+v", got)
	}

	h.HandleUpdate(context.Background(), tgbotapi.Update{Message: command(-1002, "/raid Rathaus 18:30")})
	if len(r.messages) != 1 || len(p.sent) != 1 || p.sent[0].Description != "❌ wrong_channel" {
		t.Fatalf("команда вне канала рейдов должна получить отказ: %+v", p.sent)
	}
}

func TestInputErrorReported(t *testing.T) {
	r := &stubRaids{err: raids.ErrInvalidTime}
	p := &stubPlatform{}
	h := newHandler(r, p, &stubAPI{})
	msg := command(-1001, "Rathaus")
	msg.Entities = nil
	h.HandleUpdate(context.Background(), tgbotapi.Update{Message: msg})
	if len(p.sent) != 1 || p.sent[0].Description != "❌ invalid_time" {
		t.Fatalf("ожидали отказ, получили %+v", p.sent)
	}
}

func TestCallbackRouting(t *testing.T) {
	r := &stubRaids{}
	api := &stubAPI{}
	h := newHandler(r, &stubPlatform{}, api)
	cb := func(id, data string) tgbotapi.Update {
		return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      id,
			From:    &tgbotapi.User{ID: 42},
			Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: -1001}},
			Data:    data,
		}}
	}
	h.HandleUpdate(context.Background(), cb("a", raids.LedgerData(ledger.EventAmountToggle, 2)))
	h.HandleUpdate(context.Background(), cb("b", raids.DeleteData))
	h.HandleUpdate(context.Background(), cb("c", raids.ChoiceData("p1", 0)))

	want := []string{"-1001:7|42|amount_toggle", "-1001:7|42|delete", "p1|42|choose"}
	if strings.Join(r.events, ",") != strings.Join(want, ",") {
		t.Fatalf("ожидали %v, получили %v", want, r.events)
	}
	if len(api.answered) != 3 {
		t.Fatalf("каждое нажатие нужно подтвердить: %v", api.answered)
	}
}

func TestWebhookDecodes(t *testing.T) {
	r := &stubRaids{}
	h := newHandler(r, &stubPlatform{}, &stubAPI{})

	body := `{"update_id":1,"message":{"message_id":3,"from":{"id":42,"first_name":"Ash"},"chat":{"id":-1001,"type":"supergroup"},"text":"Rathaus 18:30"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader(body)))
	if rec.Code != http.StatusOK || len(r.messages) != 1 || r.messages[0].Text != "Rathaus 18:30" {
		t.Fatalf("апдейт не обработан: %d %+v", rec.Code, r.messages)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("битый JSON должен дать 400, получили %d", rec.Code)
	}
}

func TestPollStopsOnClose(t *testing.T) {
	h := newHandler(&stubRaids{}, &stubPlatform{}, &stubAPI{})
	updates := make(chan tgbotapi.Update)
	close(updates)
	if err := h.Poll(context.Background(), updates); err != nil {
		t.Fatalf("закрытый канал завершает опрос без ошибки: %v", err)
	}
}
