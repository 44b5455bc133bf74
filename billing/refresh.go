package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Refresher demande au service wallet de recalculer le solde d'un client pré-payé.
type Refresher interface {
	Refresh(ctx context.Context, customerID string) error
}

// NoopRefresher est utilisé quand aucun service wallet n'est configuré.
type NoopRefresher struct{}

func (NoopRefresher) Refresh(ctx context.Context, customerID string) error { return nil }

// HTTPRefresher appelle le service wallet derrière un circuit breaker, pour ne pas
// bloquer la synthèse quotidienne quand le service est indisponible.
type HTTPRefresher struct {
	url    string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

func NewHTTPRefresher(url string, timeout time.Duration) *HTTPRefresher {
	return &HTTPRefresher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "wallet-refresh",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (r *HTTPRefresher) Refresh(ctx context.Context, customerID string) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		body, _ := json.Marshal(map[string]string{"customer_id": customerID})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("wallet refresh %s: status %d", customerID, resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
