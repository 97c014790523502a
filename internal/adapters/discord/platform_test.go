package discord

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"

	"taubsi/internal/domain"
)

func TestEmbed(t *testing.T) {
	e := Embed(domain.Rendered{
		Title:        "Level 5 Ei: Rathaus",
		Description:  "Start: **18:00**",
		Footer:       "Gesamt: 3",
		ThumbnailURL: "https://img/g1",
		Fields:       []domain.Field{{Name: "🔵 2", Value: "Ash"}},
		Color:        0x2ECC71,
	})
	if e.Title != "Level 5 Ei: Rathaus" || e.Footer == nil || e.Footer.Text != "Gesamt: 3" {
		t.Fatalf("неверный embed: %+v", e)
	}
	if e.Thumbnail == nil || len(e.Fields) != 1 || !e.Fields[0].Inline {
		t.Fatalf("поля и миниатюра потеряны: %+v", e)
	}
	if e.Author != nil {
		t.Fatalf("автор не задан, блок не нужен")
	}
}

func TestComponentsRows(t *testing.T) {
	var buttons []domain.Button
	for i := 0; i < 27; i++ {
		buttons = append(buttons, domain.Button{Label: "18:00", Data: "info:g1:1"})
	}
	buttons[0] = domain.Button{Label: "Maps", URL: "https://maps"}

	rows := Components(buttons)
	if len(rows) != maxRows {
		t.Fatalf("ожидали %d рядов, получили %d", maxRows, len(rows))
	}
	first := rows[0].(discordgo.ActionsRow)
	link := first.Components[0].(discordgo.Button)
	if link.Style != discordgo.LinkButton || link.URL != "https://maps" || link.CustomID != "" {
		t.Fatalf("кнопка-ссылка собрана неверно: %+v", link)
	}
	if got := Components(nil); got == nil || len(got) != 0 {
		t.Fatalf("без кнопок ожидали пустой срез, а не nil: %v", got)
	}
}

func TestAPIEmoji(t *testing.T) {
	cases := map[string]string{"🕐": "🕐", "<:late:123>": "late:123", "<a:party:9>": "party:9"}
	for in, want := range cases {
		if got := apiEmoji(in); got != want {
			t.Fatalf("%q: ожидали %q, получили %q", in, want, got)
		}
	}
}

func TestMemberFromRoles(t *testing.T) {
	m := MemberFromRoles("u1", "Ash", []string{"Moderator", "Raid-Notify", "Wagemut", "Mystic"}, "raid-notify")
	if !m.Subscriber || m.Team != domain.TeamValor || m.DisplayName != "Ash" {
		t.Fatalf("неверный участник: %+v", m)
	}
	if m := MemberFromRoles("u2", "Misty", nil, "raid-notify"); m.Subscriber || m.Team != domain.TeamNone {
		t.Fatalf("без ролей нет ни команды, ни подписки: %+v", m)
	}
}

func TestWrapNotFound(t *testing.T) {
	byStatus := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	if err := wrap("удаление", byStatus); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("404 должен стать ErrNotFound: %v", err)
	}
	byCode := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeCannotSendMessagesToThisUser},
	}
	if err := wrap("личное сообщение", byCode); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("закрытые личные сообщения должны стать ErrNotFound: %v", err)
	}
	if err := wrap("x", errors.New("сеть")); errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("прочие ошибки не маскируются")
	}
	if wrap("x", nil) != nil {
		t.Fatalf("nil остаётся nil")
	}
}

func TestControlEmojisOrder(t *testing.T) {
	p := NewPlatform(nil, domain.DefaultEmojis(), "", zerologNop())
	got := p.controlEmojis(true)
	if len(got) != 9 || got[0] != "1️⃣" || got[5] != "6️⃣" || got[8] != "❌" {
		t.Fatalf("неверный порядок реакций: %v", got)
	}
	if got := p.controlEmojis(false); got[len(got)-1] == "❌" {
		t.Fatalf("без кнопки удаления ❌ не добавляется")
	}
}
