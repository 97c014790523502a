package telegram

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/ledger"
	"taubsi/internal/usecase/raids"
)

var (
	timestampRe = regexp.MustCompile(`<t:(\d+)(?::[a-zA-Z])?>`)
	boldRe      = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// inline переводит разметку описания в HTML Telegram.
// Метки <t:unix:R> заменяются временем в поясе tz.
func inline(text string, tz *time.Location) string {
	text = timestampRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := timestampRe.FindStringSubmatch(m)
		sec, err := strconv.ParseInt(sub[1], 10, 64)
		if err != nil {
			return m
		}
		return time.Unix(sec, 0).In(tz).Format("15:04")
	})
	return boldRe.ReplaceAllString(html.EscapeString(text), "<b>$1</b>")
}

// Format собирает текст сообщения в HTML.
func Format(msg domain.Rendered, tz *time.Location) string {
	if tz == nil {
		tz = time.UTC
	}
	var b strings.Builder
	if msg.Author != "" {
		b.WriteString("<i>" + html.EscapeString(msg.Author) + "</i>\n")
	}
	if msg.Title != "" {
		b.WriteString("<b>" + html.EscapeString(msg.Title) + "</b>\n")
	}
	if msg.Description != "" {
		b.WriteString(inline(msg.Description, tz) + "\n")
	}
	for _, f := range msg.Fields {
		b.WriteString("\n<b>" + inline(f.Name, tz) + "</b>\n" + inline(f.Value, tz) + "\n")
	}
	if msg.Footer != "" {
		b.WriteString("\n<i>" + html.EscapeString(msg.Footer) + "</i>")
	}
	return Clip(b.String(), MessageLimit)
}

// Keyboard строит клавиатуру сообщения: элементы журнала, удаление, затем кнопки.
func Keyboard(msg domain.Rendered, emojis domain.Emojis, tr domain.Translator) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if msg.LedgerControls {
		var row []tgbotapi.InlineKeyboardButton
		for n := 1; n <= 6; n++ {
			label, ok := emojis.Numbers[n]
			if !ok {
				label = strconv.Itoa(n)
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, raids.LedgerData(ledger.EventAmountToggle, n)))
			if len(row) == 3 {
				rows = append(rows, row)
				row = nil
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tr.T("control_late"), raids.LedgerData(ledger.EventLateToggle, 0)),
			tgbotapi.NewInlineKeyboardButtonData(tr.T("control_remote"), raids.LedgerData(ledger.EventRemoteToggle, 0)),
			tgbotapi.NewInlineKeyboardButtonData(tr.T("control_leave"), raids.LedgerData(ledger.EventLeave, 0)),
		))
	}
	if msg.DeleteControl {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tr.T("control_delete"), raids.DeleteData),
		))
	}
	var row []tgbotapi.InlineKeyboardButton
	for _, btn := range msg.Buttons {
		if btn.URL != "" {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL))
		} else {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
