package raids

import "errors"

var (
	// ErrInvalidTime возвращается если в сообщении похоже названа арена, но время не распознано.
	ErrInvalidTime = errors.New("время рейда не распознано")
	// ErrNoLocation возвращается если ни одна арена не похожа на текст.
	ErrNoLocation = errors.New("арена не найдена")
	// ErrWrongChannel возвращается если канал не настроен для рейдов.
	ErrWrongChannel = errors.New("канал не настроен для рейдов")
	// ErrUnknownLocation возвращается если в команде указана несуществующая арена.
	ErrUnknownLocation = errors.New("неизвестная арена")
	// ErrBadChoice возвращается если индекс вне списка кандидатов.
	ErrBadChoice = errors.New("неверный выбор арены")
)

// LocaleKey возвращает ключ локализованного отказа для ошибок ввода.
func LocaleKey(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidTime):
		return "invalid_time", true
	case errors.Is(err, ErrNoLocation):
		return "no_location", true
	case errors.Is(err, ErrWrongChannel):
		return "wrong_channel", true
	case errors.Is(err, ErrUnknownLocation):
		return "wrong_gym_name", true
	}
	return "", false
}
