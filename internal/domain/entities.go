package domain

import (
	"strings"
	"time"
)

// Team описывает игровую команду участника.
type Team int

const (
	TeamNone Team = iota
	TeamMystic
	TeamValor
	TeamInstinct
)

// Teams перечисляет команды в порядке отображения.
var Teams = []Team{TeamMystic, TeamValor, TeamInstinct, TeamNone}

// String возвращает каноничное имя команды.
func (t Team) String() string {
	switch t {
	case TeamMystic:
		return "mystic"
	case TeamValor:
		return "valor"
	case TeamInstinct:
		return "instinct"
	default:
		return "none"
	}
}

var teamAliases = map[string]Team{
	"mystic":    TeamMystic,
	"weisheit":  TeamMystic,
	"blau":      TeamMystic,
	"blue":      TeamMystic,
	"valor":     TeamValor,
	"wagemut":   TeamValor,
	"rot":       TeamValor,
	"red":       TeamValor,
	"instinct":  TeamInstinct,
	"intuition": TeamInstinct,
	"gelb":      TeamInstinct,
	"yellow":    TeamInstinct,
	"none":      TeamNone,
}

// ParseTeam распознаёт команду по имени роли или ключу конфигурации.
func ParseTeam(name string) (Team, bool) {
	t, ok := teamAliases[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Location описывает арену из каталога региона.
type Location struct {
	ID       string
	Name     string
	ImageURL string
	Lat      float64
	Lon      float64
	Region   string
}

// BaseStats содержит базовые характеристики покемона.
type BaseStats struct {
	Attack  int
	Defense int
	Stamina int
}

// Boss описывает босса рейда из каталога игровых данных.
type Boss struct {
	ID        int
	Form      int
	Mega      int
	Name      string
	Proto     string
	FormProto string
	Stats     BaseStats
}

// SameAs сравнивает идентичность боссов.
func (b Boss) SameAs(other Boss) bool {
	return b.ID == other.ID && b.Form == other.Form && b.Mega == other.Mega
}

// Move описывает атаку.
type Move struct {
	ID   int
	Name string
}

// Moveset хранит быструю и заряженную атаку.
type Moveset struct {
	Quick  Move
	Charge Move
}

// Empty сообщает, что атаки неизвестны.
func (m Moveset) Empty() bool {
	return m.Quick.ID == 0 && m.Charge.ID == 0
}

// Encounter описывает рейд на арене: уровень, босса и окно времени.
// Экземпляр не изменяется после построения.
type Encounter struct {
	Level     int
	Boss      *Boss
	Moveset   Moveset
	Start     time.Time
	End       time.Time
	Scanned   bool
	Predicted bool
	CP20      int
	CP25      int
}

// Equal сравнивает по идентичности босса и признаку предсказания.
// Два рейда без босса всегда равны.
func (e Encounter) Equal(other Encounter) bool {
	if e.Boss == nil || other.Boss == nil {
		return e.Boss == nil && other.Boss == nil
	}
	return e.Boss.SameAs(*other.Boss) && e.Predicted == other.Predicted
}

// HasHatched сообщает, вылупился ли босс.
func (e Encounter) HasHatched(now time.Time) bool {
	if !e.Scanned {
		return e.Predicted
	}
	return e.Start.Before(now)
}

// Expired сообщает, что отсканированный рейд закончился.
func (e Encounter) Expired(now time.Time) bool {
	return e.Scanned && !e.End.After(now)
}

// RaidRow хранит сырую строку рейда из сканера.
type RaidRow struct {
	GymID     string
	Level     int
	PokemonID int
	Form      int
	Costume   int
	Evolution int
	Move1     int
	Move2     int
	Start     time.Time
	End       time.Time
}

// Participant хранит запись журнала участия.
type Participant struct {
	UserID      string
	DisplayName string
	Team        Team
	Amount      int
	Late        bool
	Remote      bool
	Subscriber  bool
}

// Member описывает участника чата.
type Member struct {
	UserID      string
	DisplayName string
	Team        Team
	Subscriber  bool
}

// Difficulty задаёт качественную оценку сложности рейда.
type Difficulty int

const (
	DifficultyUnknown Difficulty = iota
	DifficultyImpossible
	DifficultyHard
	DifficultyMedium
	DifficultyEasy
	DifficultyVeryEasy
)

// RaidRecord хранит сохраняемый снимок объявления.
type RaidRecord struct {
	MessageID     string
	ChannelID     string
	GuildID       string
	InitMessageID string
	AuthorID      string
	LocationID    string
	GroupID       string
	Start         time.Time
	Level         int
	BossID        int
	BossForm      int
	RaidStart     *time.Time
	RaidEnd       *time.Time
}

// InboundMessage описывает входящее сообщение чата.
type InboundMessage struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	Text      string
}
