package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"taubsi/internal/domain"
)

//go:embed *.json
var files embed.FS

// Missing возвращается для неизвестных ключей.
const Missing = "?"

// Table хранит строки одного языка.
type Table struct {
	texts map[string]string
}

var _ domain.Translator = (*Table)(nil)

// Load загружает встроенную таблицу языка (german, english).
func Load(language string) (*Table, error) {
	name := strings.ToLower(strings.TrimSpace(language)) + ".json"
	data, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("язык %q не поддерживается: %w", language, err)
	}
	var texts map[string]string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", name, err)
	}
	return &Table{texts: texts}, nil
}

// T возвращает строку по ключу.
func (t *Table) T(key string) string {
	if s, ok := t.texts[key]; ok {
		return s
	}
	return Missing
}

// Tf форматирует строку по ключу.
func (t *Table) Tf(key string, args ...any) string {
	s, ok := t.texts[key]
	if !ok {
		return Missing
	}
	return fmt.Sprintf(s, args...)
}
