package domain

// Field описывает блок сообщения с заголовком.
type Field struct {
	Name  string
	Value string
}

// Button описывает кнопку под сообщением. Кнопка со ссылкой не присылает событий.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Rendered хранит платформенно-независимое содержимое сообщения.
// Разметка: **жирный** и <t:unix:R> для относительного времени.
type Rendered struct {
	Title        string
	Author       string
	AuthorIcon   string
	Description  string
	Fields       []Field
	Footer       string
	Color        int
	ThumbnailURL string
	Buttons      []Button
	// LedgerControls включает элементы управления участием (реакции или клавиатуру).
	LedgerControls bool
	// DeleteControl включает кнопку удаления автором.
	DeleteControl bool
}

// Emojis задаёт символы элементов управления и команд.
type Emojis struct {
	Numbers map[int]string
	Late    string
	Remote  string
	Remove  string
	Teams   map[Team]string
}

// DefaultEmojis используются, если в файле регионов ничего не задано.
func DefaultEmojis() Emojis {
	return Emojis{
		Numbers: map[int]string{1: "1️⃣", 2: "2️⃣", 3: "3️⃣", 4: "4️⃣", 5: "5️⃣", 6: "6️⃣"},
		Late:    "🕐",
		Remote:  "📡",
		Remove:  "❌",
		Teams: map[Team]string{
			TeamMystic:   "🔵",
			TeamValor:    "🔴",
			TeamInstinct: "🟡",
			TeamNone:     "⚪",
		},
	}
}

// NumberFor возвращает количество по символу или 0.
func (e Emojis) NumberFor(emoji string) int {
	for n, s := range e.Numbers {
		if s == emoji {
			return n
		}
	}
	return 0
}
