package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/infra/metrics"
)

const (
	maxButtonsPerRow = 5
	maxRows          = 5
	maxLabel         = 80
)

// Platform реализует контракт чат-платформы поверх сессии Discord.
type Platform struct {
	session        *discordgo.Session
	emojis         domain.Emojis
	subscriberRole string
	log            zerolog.Logger
}

var _ domain.Platform = (*Platform)(nil)

// NewPlatform создаёт адаптер Discord.
func NewPlatform(session *discordgo.Session, emojis domain.Emojis, subscriberRole string, logger zerolog.Logger) *Platform {
	return &Platform{session: session, emojis: emojis, subscriberRole: subscriberRole, log: logger}
}

var notFoundCodes = map[int]struct{}{
	discordgo.ErrCodeUnknownChannel:               {},
	discordgo.ErrCodeUnknownMember:                {},
	discordgo.ErrCodeUnknownMessage:               {},
	discordgo.ErrCodeUnknownRole:                  {},
	discordgo.ErrCodeUnknownUser:                  {},
	discordgo.ErrCodeCannotSendMessagesToThisUser: {},
}

// wrap приводит ошибки удалённых объектов к domain.ErrNotFound.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		if rest.Message != nil {
			if _, ok := notFoundCodes[rest.Message.Code]; ok {
				return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func observe(op, target string, start time.Time, err error) {
	metrics.ObserveNetworkRequest("discord", op, target, start, err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Embed переводит сообщение в embed Discord.
func Embed(msg domain.Rendered) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
	}
	if msg.Author != "" {
		e.Author = &discordgo.MessageEmbedAuthor{Name: msg.Author, IconURL: msg.AuthorIcon}
	}
	if msg.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	if msg.ThumbnailURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: msg.ThumbnailURL}
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	return e
}

// Components раскладывает кнопки по рядам. Лишние кнопки отбрасываются.
func Components(buttons []domain.Button) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	var row discordgo.ActionsRow
	for _, b := range buttons {
		btn := discordgo.Button{Label: truncate(b.Label, maxLabel)}
		if b.URL != "" {
			btn.Style = discordgo.LinkButton
			btn.URL = b.URL
		} else {
			btn.Style = discordgo.SecondaryButton
			btn.CustomID = b.Data
		}
		row.Components = append(row.Components, btn)
		if len(row.Components) == maxButtonsPerRow {
			rows = append(rows, row)
			row = discordgo.ActionsRow{}
			if len(rows) == maxRows {
				return rows
			}
		}
	}
	if len(row.Components) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// apiEmoji приводит настроенный символ к виду, который принимает API реакций.
// "<:name:id>" и "<a:name:id>" превращаются в "name:id".
func apiEmoji(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
	s = strings.TrimPrefix(s, "a:")
	return strings.TrimPrefix(s, ":")
}

// controlEmojis возвращает реакции управления в порядке показа.
func (p *Platform) controlEmojis(withDelete bool) []string {
	numbers := make([]int, 0, len(p.emojis.Numbers))
	for n := range p.emojis.Numbers {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	out := make([]string, 0, len(numbers)+3)
	for _, n := range numbers {
		out = append(out, p.emojis.Numbers[n])
	}
	out = append(out, p.emojis.Late, p.emojis.Remote)
	if withDelete {
		out = append(out, p.emojis.Remove)
	}
	return out
}

func (p *Platform) Send(ctx context.Context, channelID string, msg domain.Rendered) (string, error) {
	start := time.Now()
	sent, err := p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{Embed(msg)},
		Components: Components(msg.Buttons),
	}, discordgo.WithContext(ctx))
	observe("message_send", channelID, start, err)
	if err != nil {
		return "", wrap("отправка сообщения", err)
	}
	if msg.LedgerControls {
		for _, emoji := range p.controlEmojis(msg.DeleteControl) {
			start = time.Now()
			err := p.session.MessageReactionAdd(channelID, sent.ID, apiEmoji(emoji), discordgo.WithContext(ctx))
			observe("reaction_add", channelID, start, err)
			if err != nil {
				p.log.Warn().Err(err).Str("message_id", sent.ID).Str("emoji", emoji).Msg("discord: не удалось добавить реакцию")
			}
		}
	}
	return sent.ID, nil
}

func (p *Platform) Edit(ctx context.Context, channelID, messageID string, msg domain.Rendered) error {
	embeds := []*discordgo.MessageEmbed{Embed(msg)}
	comps := Components(msg.Buttons)
	start := time.Now()
	_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &comps,
	}, discordgo.WithContext(ctx))
	observe("message_edit", channelID, start, err)
	return wrap("изменение сообщения", err)
}

func (p *Platform) Delete(ctx context.Context, channelID, messageID string) error {
	start := time.Now()
	err := p.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	observe("message_delete", channelID, start, err)
	return wrap("удаление сообщения", err)
}

// ClearControls снимает все реакции. Кнопки-ссылки остаются.
func (p *Platform) ClearControls(ctx context.Context, channelID, messageID string) error {
	start := time.Now()
	err := p.session.MessageReactionsRemoveAll(channelID, messageID, discordgo.WithContext(ctx))
	observe("reactions_clear", channelID, start, err)
	return wrap("снятие реакций", err)
}

func (p *Platform) RemoveDeleteControl(ctx context.Context, channelID, messageID string) error {
	start := time.Now()
	err := p.session.MessageReactionsRemoveEmoji(channelID, messageID, apiEmoji(p.emojis.Remove), discordgo.WithContext(ctx))
	observe("reaction_remove", channelID, start, err)
	return wrap("снятие реакции удаления", err)
}

// CreateGroup создаёт упоминаемую роль.
func (p *Platform) CreateGroup(ctx context.Context, guildID, name string) (string, error) {
	mentionable := true
	start := time.Now()
	role, err := p.session.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: name, Mentionable: &mentionable}, discordgo.WithContext(ctx))
	observe("role_create", guildID, start, err)
	if err != nil {
		return "", wrap("создание роли", err)
	}
	return role.ID, nil
}

func (p *Platform) DeleteGroup(ctx context.Context, guildID, groupID string) error {
	start := time.Now()
	err := p.session.GuildRoleDelete(guildID, groupID, discordgo.WithContext(ctx))
	observe("role_delete", guildID, start, err)
	return wrap("удаление роли", err)
}

func (p *Platform) SetGroupMember(ctx context.Context, guildID, groupID, userID string, member bool) error {
	start := time.Now()
	var err error
	if member {
		err = p.session.GuildMemberRoleAdd(guildID, userID, groupID, discordgo.WithContext(ctx))
	} else {
		err = p.session.GuildMemberRoleRemove(guildID, userID, groupID, discordgo.WithContext(ctx))
	}
	observe("member_role", guildID, start, err)
	return wrap("изменение роли участника", err)
}

// Member читает участника из кэша сессии, при промахе из API.
func (p *Platform) Member(ctx context.Context, guildID, userID string) (domain.Member, error) {
	m, err := p.session.State.Member(guildID, userID)
	if err != nil {
		start := time.Now()
		m, err = p.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		observe("member_get", guildID, start, err)
		if err != nil {
			return domain.Member{}, wrap("чтение участника", err)
		}
	}
	names := make([]string, 0, len(m.Roles))
	for _, id := range m.Roles {
		if role, err := p.session.State.Role(guildID, id); err == nil {
			names = append(names, role.Name)
		}
	}
	return MemberFromRoles(userID, displayName(m), names, p.subscriberRole), nil
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

// MemberFromRoles определяет команду и подписку по именам ролей.
func MemberFromRoles(userID, name string, roles []string, subscriberRole string) domain.Member {
	out := domain.Member{UserID: userID, DisplayName: name}
	for _, r := range roles {
		if subscriberRole != "" && strings.EqualFold(r, subscriberRole) {
			out.Subscriber = true
			continue
		}
		if out.Team == domain.TeamNone {
			if team, ok := domain.ParseTeam(r); ok {
				out.Team = team
			}
		}
	}
	return out
}

func (p *Platform) SendDirect(ctx context.Context, userID string, msg domain.Rendered) error {
	start := time.Now()
	ch, err := p.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	observe("dm_channel", userID, start, err)
	if err != nil {
		return wrap("открытие личного канала", err)
	}
	_, err = p.Send(ctx, ch.ID, msg)
	return err
}

func (p *Platform) MessageURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}
