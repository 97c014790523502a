package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"taubsi/internal/domain"
	"taubsi/internal/infra/cache"
	"taubsi/internal/infra/queue"
)

type stubSender struct {
	mu   sync.Mutex
	sent []string
	err  error
	done chan string
}

func (s *stubSender) SendDirect(_ context.Context, userID string, msg domain.Rendered) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, userID+":"+msg.Description)
	if s.done != nil {
		s.done <- userID
	}
	return nil
}

func TestHandleDeduplicates(t *testing.T) {
	sender := &stubSender{}
	w := NewWorker(queue.NewMemoryNotificationQueue(4), sender, cache.NewMemory(), 0, zerolog.Nop())
	job := domain.NotificationJob{ID: "j1", UserID: "u1", Title: "Rathaus", Text: "▶️ Ash (2)", URL: "https://chat/x"}

	for i := 0; i < 2; i++ {
		if err := w.Handle(context.Background(), job); err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}
	if len(sender.sent) != 1 || sender.sent[0] != "u1:▶️ Ash (2)" {
		t.Fatalf("ожидали одну доставку, получили %v", sender.sent)
	}
}

func TestHandleRetriesAfterFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("dm закрыты")}
	w := NewWorker(queue.NewMemoryNotificationQueue(4), sender, cache.NewMemory(), 0, zerolog.Nop())
	job := domain.NotificationJob{ID: "j1", UserID: "u1", Text: "x"}
	if err := w.Handle(context.Background(), job); err == nil {
		t.Fatalf("ожидали ошибку отправки")
	}
	sender.err = nil
	if err := w.Handle(context.Background(), job); err != nil {
		t.Fatalf("после ошибки задание можно повторить: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("ожидали одну доставку, получили %v", sender.sent)
	}
}

func TestMessageHasLink(t *testing.T) {
	msg := Message(domain.NotificationJob{Title: "Rathaus", Text: "⏰", URL: "https://chat/x"})
	if len(msg.Buttons) != 1 || msg.Buttons[0].URL != "https://chat/x" || msg.Title != "Rathaus" {
		t.Fatalf("неверное сообщение %+v", msg)
	}
	if got := Message(domain.NotificationJob{Text: "⏰"}); len(got.Buttons) != 0 {
		t.Fatalf("без ссылки кнопка не нужна")
	}
}

func TestRunDeliversQueue(t *testing.T) {
	q := queue.NewMemoryNotificationQueue(4)
	sender := &stubSender{done: make(chan string, 2)}
	w := NewWorker(q, sender, nil, 1000, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = q.Enqueue(ctx, domain.NotificationJob{ID: "a", UserID: "u1"})
	_ = q.Enqueue(ctx, domain.NotificationJob{ID: "b", UserID: "u2"})

	result := make(chan error, 1)
	go func() { result <- w.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-sender.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("уведомления не доставлены")
		}
	}
	cancel()
	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ожидали context.Canceled, получили %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("воркер не остановился")
	}
}
