package raids

import (
	"fmt"
	"strings"
	"time"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/ledger"
	"taubsi/internal/usecase/resolver"
)

const clock = "15:04"

var difficultyColors = map[domain.Difficulty]int{
	domain.DifficultyUnknown:    0x99AAB5,
	domain.DifficultyImpossible: 0xE74C3C,
	domain.DifficultyHard:       0xE67E22,
	domain.DifficultyMedium:     0xF1C40F,
	domain.DifficultyEasy:       0x2ECC71,
	domain.DifficultyVeryEasy:   0x1ABC9C,
}

// View собирает всё, от чего зависит сообщение объявления.
type View struct {
	Location      domain.Location
	Encounter     domain.Encounter
	Start         time.Time
	Groups        []ledger.TeamGroup
	Total         int
	Warnings      []ledger.WarningKind
	Limits        ledger.Limits
	Static        []string
	Difficulty    domain.Difficulty
	FooterPrefix  string
	Controls      bool
	DeleteControl bool
	Emojis        domain.Emojis
	TZ            *time.Location
}

// Render строит сообщение объявления. Одинаковый View даёт одинаковый результат.
func Render(v View, tr domain.Translator) domain.Rendered {
	tz := v.TZ
	if tz == nil {
		tz = time.UTC
	}
	e := v.Encounter

	var b strings.Builder
	fmt.Fprintf(&b, "%s: **%s** <t:%d:R>\n\n", tr.T("start"), v.Start.In(tz).Format(clock), v.Start.Unix())
	if e.Boss != nil {
		fmt.Fprintf(&b, "100%%: **%d** | **%d**\n", e.CP20, e.CP25)
	}
	if e.Scanned {
		if !e.Moveset.Empty() {
			fmt.Fprintf(&b, "%s: **%s** | **%s**\n", tr.T("moves"), e.Moveset.Quick.Name, e.Moveset.Charge.Name)
		}
		fmt.Fprintf(&b, "%s: **%s** – **%s**\n", tr.T("raid_time"), e.Start.In(tz).Format(clock), e.End.In(tz).Format(clock))
	}
	for _, w := range v.Static {
		b.WriteString("\n" + w)
	}
	for _, w := range v.Warnings {
		b.WriteString("\n" + warningText(w, v.Limits, tr))
	}

	footer := fmt.Sprintf("%s%s: %d", v.FooterPrefix, tr.T("total"), v.Total)
	if v.Difficulty != domain.DifficultyUnknown {
		footer += " | " + tr.T(fmt.Sprintf("difficulty_%d", int(v.Difficulty)))
	}

	out := domain.Rendered{
		Title:          resolver.Title(e, tr) + ": " + v.Location.Name,
		Description:    strings.TrimRight(b.String(), "\n"),
		Fields:         memberFields(v),
		Footer:         footer,
		Color:          difficultyColors[v.Difficulty],
		ThumbnailURL:   v.Location.ImageURL,
		LedgerControls: v.Controls,
		DeleteControl:  v.DeleteControl,
	}
	if v.Location.Lat != 0 || v.Location.Lon != 0 {
		out.Buttons = append(out.Buttons, domain.Button{Label: tr.T("maps"), URL: MapsURL(v.Location)})
	}
	return out
}

// MapsURL возвращает ссылку на арену в Google Maps.
func MapsURL(loc domain.Location) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%f,%f", loc.Lat, loc.Lon)
}

func memberFields(v View) []domain.Field {
	fields := make([]domain.Field, 0, len(v.Groups))
	for _, g := range v.Groups {
		var lines []string
		for _, p := range g.Members {
			text := fmt.Sprintf("%s (%d)", displayName(p), p.Amount)
			if p.Late {
				text = v.Emojis.Late + " " + text
			}
			if p.Remote {
				text = v.Emojis.Remote + " " + text
			}
			lines = append(lines, text)
		}
		fields = append(fields, domain.Field{
			Name:  fmt.Sprintf("%s (%d)", v.Emojis.Teams[g.Team], g.Total),
			Value: strings.Join(lines, "\n"),
		})
	}
	return fields
}

func displayName(p domain.Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UserID
}

func warningText(w ledger.WarningKind, limits ledger.Limits, tr domain.Translator) string {
	switch w {
	case ledger.WarnBoth:
		return tr.Tf("warn_too_many_both", limits.Total, limits.Remote)
	case ledger.WarnRemote:
		return tr.Tf("warn_too_many_remote", limits.Remote)
	case ledger.WarnTotal:
		return tr.Tf("warn_too_many_total", limits.Total)
	default:
		return tr.T("warn_is_late")
	}
}
