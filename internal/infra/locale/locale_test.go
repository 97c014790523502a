package locale

import (
	"strings"
	"testing"
)

func TestLoadAndTranslate(t *testing.T) {
	de, err := Load("german")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := de.T("start"); got != "Start" {
		t.Fatalf("ожидали Start, получили %q", got)
	}
	if got := de.T("nope"); got != Missing {
		t.Fatalf("для неизвестного ключа ожидали %q, получили %q", Missing, got)
	}
	if got := de.Tf("warn_other_times", "18:30"); !strings.Contains(got, "18:30") {
		t.Fatalf("ожидали подстановку времени, получили %q", got)
	}
}

func TestTablesHaveSameKeys(t *testing.T) {
	de, err := Load("german")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	en, err := Load("English")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for k := range de.texts {
		if _, ok := en.texts[k]; !ok {
			t.Fatalf("в английской таблице нет ключа %q", k)
		}
	}
	if len(de.texts) != len(en.texts) {
		t.Fatalf("таблицы различаются по размеру: %d и %d", len(de.texts), len(en.texts))
	}
}

func TestUnknownLanguage(t *testing.T) {
	if _, err := Load("klingon"); err == nil {
		t.Fatalf("ожидали ошибку для неизвестного языка")
	}
}
