package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/ledger"
	"taubsi/internal/usecase/raids"
)

type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	err      error
	member   tgbotapi.ChatMember
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	if f.err != nil {
		return nil, f.err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChatMember(tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return f.member, f.err
}

type keyTranslator struct{}

func (keyTranslator) T(key string) string { return key }

func (keyTranslator) Tf(key string, _ ...any) string { return key }

func newPlatform(api *fakeAPI) *Platform {
	return NewPlatform(api, domain.DefaultEmojis(), keyTranslator{}, time.UTC, zerolog.Nop())
}

func hasData(kb *tgbotapi.InlineKeyboardMarkup, data string) bool {
	if kb == nil {
		return false
	}
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil && *b.CallbackData == data {
				return true
			}
		}
	}
	return false
}

func announcement() domain.Rendered {
	return domain.Rendered{
		Title:          "Level 5 Ei: Rathaus",
		Description:    "Start: **18:00** <t:1792080000:R>",
		Buttons:        []domain.Button{{Label: "Maps", URL: "https://maps"}},
		LedgerControls: true,
		DeleteControl:  true,
	}
}

func TestSendEditAndTrimControls(t *testing.T) {
	api := &fakeAPI{}
	p := newPlatform(api)
	ctx := context.Background()

	id, err := p.Send(ctx, "-1001", announcement())
	if err != nil || id != "-1001:1" {
		t.Fatalf("ожидали -1001:1, получили %q (%v)", id, err)
	}
	msg := api.sent[0].(tgbotapi.MessageConfig)
	kb, _ := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if msg.ParseMode != tgbotapi.ModeHTML || !hasData(&kb, raids.DeleteData) ||
		!hasData(&kb, raids.LedgerData(ledger.EventAmountToggle, 6)) {
		t.Fatalf("клавиатура без элементов управления: %+v", kb)
	}

	if err := p.RemoveDeleteControl(ctx, "-1001", id); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	trimmed := api.requests[0].(tgbotapi.EditMessageReplyMarkupConfig)
	if hasData(trimmed.ReplyMarkup, raids.DeleteData) || !hasData(trimmed.ReplyMarkup, raids.LedgerData(ledger.EventLeave, 0)) {
		t.Fatalf("должна пропасть только кнопка удаления: %+v", trimmed.ReplyMarkup)
	}

	if err := p.ClearControls(ctx, "-1001", id); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	cleared := api.requests[1].(tgbotapi.EditMessageReplyMarkupConfig)
	if len(cleared.ReplyMarkup.InlineKeyboard) != 1 || cleared.ReplyMarkup.InlineKeyboard[0][0].URL == nil {
		t.Fatalf("должна остаться только ссылка: %+v", cleared.ReplyMarkup)
	}
	if len(p.rendered) != 0 {
		t.Fatalf("завершённое сообщение не должно храниться")
	}
}

func TestWrapErrors(t *testing.T) {
	gone := &tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"}
	if err := wrap("x", gone); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
	blocked := &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	if err := wrap("x", blocked); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
	same := &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}
	if err := wrap("x", same); err != nil {
		t.Fatalf("правка без изменений не ошибка: %v", err)
	}
	if err := wrap("x", errors.New("timeout")); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("прочие ошибки передаются как есть: %v", err)
	}
}

func TestFormat(t *testing.T) {
	got := Format(domain.Rendered{
		Title:       "Raid <5>",
		Description: "Start: **18:00** <t:1792080000:R>",
		Fields:      []domain.Field{{Name: "🔵 2", Value: "Ash & Misty"}},
		Footer:      "Gesamt: 2",
	}, time.UTC)
	for _, want := range []string{"<b>Raid &lt;5&gt;</b>", "<b>18:00</b>", "Ash &amp; Misty", "<i>Gesamt: 2</i>"} {
		if !strings.Contains(got, want) {
			t.Fatalf("в %q нет %q", got, want)
		}
	}
	if strings.Contains(got, "<t:") {
		t.Fatalf("метка времени не заменена: %q", got)
	}
}

func TestMemberAndURL(t *testing.T) {
	api := &fakeAPI{member: tgbotapi.ChatMember{User: &tgbotapi.User{FirstName: "Ash"}, CustomTitle: "Valor"}}
	p := newPlatform(api)
	m, err := p.Member(context.Background(), "-1001", "42")
	if err != nil || m.DisplayName != "Ash" || m.Team != domain.TeamValor || !m.Subscriber {
		t.Fatalf("неверный участник %+v (%v)", m, err)
	}
	if got := p.MessageURL("", "-1001234", "-1001234:7"); got != "https://t.me/c/1234/7" {
		t.Fatalf("неверная ссылка %q", got)
	}
	if got := p.MessageURL("", "42", "42:7"); got != "" {
		t.Fatalf("для личного чата ссылки нет, получили %q", got)
	}
	if _, _, err := ParseMessageID("bad"); err == nil {
		t.Fatalf("ожидали ошибку разбора")
	}
}
