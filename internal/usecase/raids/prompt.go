package raids

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"taubsi/internal/domain"
	"taubsi/internal/usecase/matcher"
)

const choicePrefix = "choice"

// Prompt предлагает выбрать арену из нескольких похожих. Живёт до выбора или перезапуска.
type Prompt struct {
	ID          string
	MessageID   string
	ChannelID   string
	RequesterID string
	Candidates  []domain.Location
	params      createParams
}

// ChoiceData кодирует нажатие кнопки выбора.
func ChoiceData(promptID string, index int) string {
	return fmt.Sprintf("%s:%s:%d", choicePrefix, promptID, index)
}

// ParseChoiceData разбирает данные кнопки выбора.
func ParseChoiceData(data string) (promptID string, index int, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != choicePrefix || parts[1] == "" {
		return "", 0, false
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		return "", 0, false
	}
	return parts[1], index, true
}

// RenderPrompt строит сообщение выбора арены.
func RenderPrompt(p *Prompt, tr domain.Translator) domain.Rendered {
	out := domain.Rendered{
		Title:       tr.Tf("choice_x_gyms", len(p.Candidates)),
		Description: tr.T("choice_please_choose"),
	}
	for i, loc := range p.Candidates {
		out.Buttons = append(out.Buttons, domain.Button{Label: loc.Name, Data: ChoiceData(p.ID, i)})
	}
	return out
}

func (s *Service) prompt(ctx context.Context, params createParams, cands []matcher.Candidate) error {
	p := &Prompt{
		ID:          uuid.NewString(),
		ChannelID:   params.channelID,
		RequesterID: params.authorID,
		params:      params,
	}
	for _, c := range cands {
		p.Candidates = append(p.Candidates, c.Location)
	}
	id, err := s.platform.Send(ctx, params.channelID, RenderPrompt(p, s.tr))
	if err != nil {
		return fmt.Errorf("отправка выбора арены: %w", err)
	}
	p.MessageID = id

	s.mu.Lock()
	s.prompts[p.ID] = p
	s.mu.Unlock()
	s.log.Info().Str("prompt_id", p.ID).Int("candidates", len(p.Candidates)).Msg("raids: предложен выбор арены")
	return nil
}

// Choose применяет выбор автора подсказки. Выбор других пользователей игнорируется.
func (s *Service) Choose(ctx context.Context, promptID, userID string, index int) (*Announcement, error) {
	s.mu.Lock()
	p, ok := s.prompts[promptID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if p.RequesterID != userID {
		s.mu.Unlock()
		return nil, nil
	}
	if index < 0 || index >= len(p.Candidates) {
		s.mu.Unlock()
		return nil, ErrBadChoice
	}
	delete(s.prompts, promptID)
	s.mu.Unlock()

	if err := s.platform.Delete(ctx, p.ChannelID, p.MessageID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn().Err(err).Str("prompt_id", p.ID).Msg("raids: не удалось удалить выбор арены")
	}
	params := p.params
	params.location = p.Candidates[index]
	return s.create(ctx, params)
}

// Prompts возвращает число ожидающих подсказок.
func (s *Service) Prompts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prompts)
}

func (s *Service) dropPromptByMessage(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.prompts {
		if p.MessageID == messageID {
			delete(s.prompts, id)
			return true
		}
	}
	return false
}
