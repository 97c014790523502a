package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается, когда сообщение, роль или запись уже удалены.
var ErrNotFound = errors.New("не найдено")

// Platform описывает контракт чат-платформы.
type Platform interface {
	Send(ctx context.Context, channelID string, msg Rendered) (string, error)
	Edit(ctx context.Context, channelID, messageID string, msg Rendered) error
	Delete(ctx context.Context, channelID, messageID string) error
	// ClearControls снимает реакции и кнопки с сообщения.
	ClearControls(ctx context.Context, channelID, messageID string) error
	// RemoveDeleteControl убирает только кнопку удаления.
	RemoveDeleteControl(ctx context.Context, channelID, messageID string) error
	CreateGroup(ctx context.Context, guildID, name string) (string, error)
	DeleteGroup(ctx context.Context, guildID, groupID string) error
	SetGroupMember(ctx context.Context, guildID, groupID, userID string, member bool) error
	Member(ctx context.Context, guildID, userID string) (Member, error)
	SendDirect(ctx context.Context, userID string, msg Rendered) error
	MessageURL(guildID, channelID, messageID string) string
}

// RaidRepo хранит объявления и журнал участия.
type RaidRepo interface {
	UpsertRaid(ctx context.Context, rec RaidRecord) error
	DeleteRaid(ctx context.Context, messageID string) error
	UpsertParticipant(ctx context.Context, messageID string, p Participant) error
	ListUpcoming(ctx context.Context, after time.Time) ([]RaidRecord, error)
	ListParticipants(ctx context.Context, messageID string) ([]Participant, error)
}

// GameState отдаёт данные сканера.
type GameState interface {
	ListLocations(ctx context.Context) ([]Location, error)
	ListRaids(ctx context.Context) ([]RaidRow, error)
}

// Catalogue отвечает за справочник покемонов, атак и боссов по уровням.
type Catalogue interface {
	Boss(id, form, mega int) (Boss, bool)
	RaidBosses(level int) []Boss
	Move(id int) (Move, bool)
}

// Translator возвращает локализованные строки.
type Translator interface {
	T(key string) string
	Tf(key string, args ...any) string
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
