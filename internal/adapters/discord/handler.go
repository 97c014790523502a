package discord

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/ledger"
	"taubsi/internal/usecase/raids"
)

const (
	errorColor    = 16073282
	errorTTL      = 20 * time.Second
	handleTimeout = 30 * time.Second
	maxChoices    = 25

	commandName = "raid"
	optionGym   = "arena"
	optionTime  = "zeit"
)

// Raids описывает операции объявлений, доступные из событий чата.
type Raids interface {
	HandleMessage(ctx context.Context, msg domain.InboundMessage) error
	HandleLedgerEvent(ctx context.Context, messageID, userID string, kind ledger.EventKind, amount int) error
	HandleDeleteControl(ctx context.Context, messageID, userID string) error
	HandleMessageDeleted(ctx context.Context, messageID string) error
	CreateFromCommand(ctx context.Context, req raids.CommandRequest) (*raids.Announcement, error)
	Choose(ctx context.Context, promptID, userID string, index int) (*raids.Announcement, error)
	Suggest(channelID, text string, limit int) []domain.Location
}

// Boards обрабатывает нажатия на досках рейдов.
type Boards interface {
	Press(ctx context.Context, channelID, messageID, userID, userName, data string, now time.Time) error
}

// Handler переводит события шлюза Discord в вызовы сервисов.
type Handler struct {
	raids    Raids
	boards   Boards
	platform domain.Platform
	tr       domain.Translator
	emojis   domain.Emojis
	log      zerolog.Logger
	now      func() time.Time
	errorTTL time.Duration
	selfID   string
}

// NewHandler создаёт обработчик. boards может быть nil.
func NewHandler(r Raids, boards Boards, platform domain.Platform, tr domain.Translator, emojis domain.Emojis, logger zerolog.Logger) *Handler {
	return &Handler{
		raids:    r,
		boards:   boards,
		platform: platform,
		tr:       tr,
		emojis:   emojis,
		log:      logger,
		now:      time.Now,
		errorTTL: errorTTL,
	}
}

// Register подписывает обработчик на события сессии.
func (h *Handler) Register(s *discordgo.Session) {
	s.AddHandler(h.onReady)
	s.AddHandler(h.onMessageCreate)
	s.AddHandler(h.onMessageDelete)
	s.AddHandler(h.onReactionAdd)
	s.AddHandler(h.onReactionRemove)
	s.AddHandler(h.onInteraction)
}

// Intents перечисляет события, которые нужны боту.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

// Command описывает команду /raid.
func Command(tr domain.Translator) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        commandName,
		Description: tr.T("command_raid"),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         optionGym,
				Description:  tr.T("command_raid_gym"),
				Required:     true,
				Autocomplete: true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optionTime,
				Description: tr.T("command_raid_time"),
				Required:    true,
			},
		},
	}
}

// RegisterCommands регистрирует /raid на каждом сервере.
func RegisterCommands(s *discordgo.Session, appID string, guildIDs []string, tr domain.Translator) error {
	var errs []error
	for _, guildID := range guildIDs {
		if _, err := s.ApplicationCommandCreate(appID, guildID, Command(tr)); err != nil {
			errs = append(errs, wrap("регистрация команды на "+guildID, err))
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handleTimeout)
}

func (h *Handler) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		h.selfID = r.User.ID
	}
	h.log.Info().Int("guilds", len(r.Guilds)).Msg("discord: сессия готова")
}

func (h *Handler) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	ctx, cancel := h.ctx()
	defer cancel()
	err := h.raids.HandleMessage(ctx, domain.InboundMessage{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		Text:      m.Content,
	})
	h.report(ctx, m.ChannelID, err)
}

// report показывает отказ ввода в канале и удаляет его через errorTTL.
func (h *Handler) report(ctx context.Context, channelID string, err error) {
	if err == nil {
		return
	}
	key, ok := raids.LocaleKey(err)
	if !ok {
		h.log.Error().Err(err).Str("channel_id", channelID).Msg("discord: ошибка обработки сообщения")
		return
	}
	id, sendErr := h.platform.Send(ctx, channelID, domain.Rendered{Description: "❌ " + h.tr.T(key), Color: errorColor})
	if sendErr != nil {
		h.log.Warn().Err(sendErr).Msg("discord: не удалось отправить отказ")
		return
	}
	time.AfterFunc(h.errorTTL, func() {
		ctx, cancel := h.ctx()
		defer cancel()
		if err := h.platform.Delete(ctx, channelID, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			h.log.Debug().Err(err).Msg("discord: не удалось удалить отказ")
		}
	})
}

func (h *Handler) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	ctx, cancel := h.ctx()
	defer cancel()
	if err := h.raids.HandleMessageDeleted(ctx, m.ID); err != nil {
		h.log.Error().Err(err).Str("message_id", m.ID).Msg("discord: ошибка снятия объявления")
	}
}

func matchEmoji(configured string, e discordgo.Emoji) bool {
	if configured == "" {
		return false
	}
	return configured == e.Name || configured == e.APIName() || configured == e.MessageFormat()
}

type reactionAction struct {
	kind   ledger.EventKind
	amount int
	delete bool
}

// reactionFor переводит реакцию в событие журнала.
func (h *Handler) reactionFor(e discordgo.Emoji, added bool) (reactionAction, bool) {
	for n, s := range h.emojis.Numbers {
		if matchEmoji(s, e) {
			if added {
				return reactionAction{kind: ledger.EventAmount, amount: n}, true
			}
			return reactionAction{kind: ledger.EventLeave}, true
		}
	}
	switch {
	case matchEmoji(h.emojis.Late, e):
		if added {
			return reactionAction{kind: ledger.EventLate}, true
		}
		return reactionAction{kind: ledger.EventOnTime}, true
	case matchEmoji(h.emojis.Remote, e):
		if added {
			return reactionAction{kind: ledger.EventRemote}, true
		}
		return reactionAction{kind: ledger.EventLocal}, true
	case matchEmoji(h.emojis.Remove, e) && added:
		return reactionAction{delete: true}, true
	}
	return reactionAction{}, false
}

func (h *Handler) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	h.handleReaction(r.MessageReaction, true)
}

func (h *Handler) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	h.handleReaction(r.MessageReaction, false)
}

func (h *Handler) handleReaction(r *discordgo.MessageReaction, added bool) {
	if r == nil || r.UserID == h.selfID {
		return
	}
	action, ok := h.reactionFor(r.Emoji, added)
	if !ok {
		return
	}
	ctx, cancel := h.ctx()
	defer cancel()
	var err error
	if action.delete {
		err = h.raids.HandleDeleteControl(ctx, r.MessageID, r.UserID)
	} else {
		err = h.raids.HandleLedgerEvent(ctx, r.MessageID, r.UserID, action.kind, action.amount)
	}
	if err != nil {
		h.log.Error().Err(err).Str("message_id", r.MessageID).Str("user_id", r.UserID).Msg("discord: ошибка обработки реакции")
	}
}

func interactionUser(i *discordgo.InteractionCreate) (id, name string) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID, displayName(i.Member)
	}
	if i.User != nil {
		return i.User.ID, i.User.Username
	}
	return "", ""
}

func (h *Handler) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := h.ctx()
	defer cancel()
	switch i.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.respond(s, i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionApplicationCommandAutocompleteResult,
			Data: &discordgo.InteractionResponseData{Choices: h.autocomplete(i)},
		})
	case discordgo.InteractionApplicationCommand:
		text := h.runCommand(ctx, i)
		h.respond(s, i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
		})
	case discordgo.InteractionMessageComponent:
		h.respond(s, i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate})
		userID, name := interactionUser(i)
		messageID := ""
		if i.Message != nil {
			messageID = i.Message.ID
		}
		if err := h.HandleComponent(ctx, i.ChannelID, messageID, userID, name, i.MessageComponentData().CustomID); err != nil {
			h.log.Error().Err(err).Str("message_id", messageID).Msg("discord: ошибка обработки кнопки")
		}
	}
}

func (h *Handler) respond(s *discordgo.Session, i *discordgo.InteractionCreate, resp *discordgo.InteractionResponse) {
	if err := s.InteractionRespond(i.Interaction, resp); err != nil {
		h.log.Warn().Err(err).Msg("discord: не удалось ответить на взаимодействие")
	}
}

func (h *Handler) autocomplete(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandOptionChoice {
	var typed string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Focused {
			typed = opt.StringValue()
		}
	}
	locs := h.raids.Suggest(i.ChannelID, typed, maxChoices)
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(locs))
	for _, loc := range locs {
		name := truncate(loc.Name, 100)
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
	}
	return out
}

func (h *Handler) runCommand(ctx context.Context, i *discordgo.InteractionCreate) string {
	data := i.ApplicationCommandData()
	if data.Name != commandName {
		return h.tr.T("wrong_channel")
	}
	userID, _ := interactionUser(i)
	req := raids.CommandRequest{ChannelID: i.ChannelID, UserID: userID}
	for _, opt := range data.Options {
		switch opt.Name {
		case optionGym:
			req.LocationName = opt.StringValue()
		case optionTime:
			req.Time = opt.StringValue()
		}
	}
	if _, err := h.raids.CreateFromCommand(ctx, req); err != nil {
		if key, ok := raids.LocaleKey(err); ok {
			return "❌ " + h.tr.T(key)
		}
		h.log.Error().Err(err).Str("channel_id", i.ChannelID).Msg("discord: ошибка команды /raid")
		return "❌"
	}
	return "✅ " + h.tr.T("raid_created")
}

// HandleComponent разбирает данные нажатой кнопки.
func (h *Handler) HandleComponent(ctx context.Context, channelID, messageID, userID, userName, data string) error {
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
		return h.boards.Press(ctx, channelID, messageID, userID, userName, data, h.now())
	}
	if kind, amount, ok := raids.ParseLedgerData(data); ok {
		return h.raids.HandleLedgerEvent(ctx, messageID, userID, kind, amount)
	}
	return nil
}
