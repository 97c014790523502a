package pokebattler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taubsi/internal/infra/metrics"
	"taubsi/internal/usecase/difficulty"
)

// ErrNoAttackers возвращается, если сервис не прислал ни одного атакующего.
var ErrNoAttackers = errors.New("pokebattler: пустой список атакующих")

const raidPath = "/raids/defenders/%s/levels/RAID_LEVEL_%s/attackers/levels/40/strategies/CINEMATIC_ATTACK_WHEN_POSSIBLE/DEFENSE_RANDOM_MC"

// Client обращается к симулятору рейдов по HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ difficulty.Source = (*Client)(nil)

// NewClient создаёт клиент.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://fight.pokebattler.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type raidPayload struct {
	Attackers []struct {
		RandomMove struct {
			Total struct {
				Estimator float64 `json:"estimator"`
			} `json:"total"`
		} `json:"randomMove"`
	} `json:"attackers"`
}

func (c *Client) raidURL(defender, level string) string {
	q := url.Values{}
	q.Set("sort", "ESTIMATOR")
	q.Set("weatherCondition", "NO_WEATHER")
	q.Set("dodgeStrategy", "DODGE_REACTION_TIME")
	q.Set("aggregation", "AVERAGE")
	q.Set("includeLegendary", "true")
	q.Set("includeShadow", "true")
	q.Set("includeMegas", "true")
	q.Set("attackerTypes", "POKEMON_TYPE_ALL")
	path := fmt.Sprintf(raidPath, url.PathEscape(defender), url.PathEscape(level))
	return c.baseURL + path + "?" + q.Encode()
}

// Estimator возвращает оценку числа игроков для босса на уровне рейда.
// Оценка берётся у первой записи атакующих.
func (c *Client) Estimator(ctx context.Context, defender, level string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.raidURL(defender, level), nil)
	if err != nil {
		return 0, fmt.Errorf("pokebattler: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("pokebattler", "raid_estimator", defender, start, err)
		return 0, fmt.Errorf("pokebattler: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("pokebattler", "raid_estimator", defender, start, err)
		return 0, fmt.Errorf("pokebattler: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("pokebattler: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("pokebattler", "raid_estimator", defender, start, err)
		return 0, err
	}
	var payload raidPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.ObserveNetworkRequest("pokebattler", "raid_estimator", defender, start, err)
		return 0, fmt.Errorf("pokebattler: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("pokebattler", "raid_estimator", defender, start, nil)
	if len(payload.Attackers) == 0 {
		return 0, ErrNoAttackers
	}
	return payload.Attackers[0].RandomMove.Total.Estimator, nil
}
