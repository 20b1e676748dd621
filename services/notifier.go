package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"gamification-service/models"
	"gamification-service/utils"
)

// Notifier delivers one notification-worthy fact to the downstream
// channel service. Implementations are best-effort: the caller retries on
// the next tick, never rolls anything back.
type Notifier interface {
	Notify(ctx context.Context, fact models.NotificationOutbox) error
}

// HTTPNotifier posts facts to the notification service behind the
// gateway, authenticated with this service's token.
type HTTPNotifier struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewHTTPNotifier() *HTTPNotifier {
	baseURL := os.Getenv("NOTIFY_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("NOTIFY_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("GAMIFICATION_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("GAMIFICATION_SERVICE_TOKEN environment variable is required for notification dispatch")
	}

	return &HTTPNotifier{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: utils.HTTPClient,
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, fact models.NotificationOutbox) error {
	payload := map[string]interface{}{
		"user_id":      fact.ExternalUserID,
		"kind":         fact.Kind,
		"reference_id": fact.ReferenceID,
		"granted_at":   fact.GrantedAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.BaseURL+"/api/v1/internal/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", n.Token)

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call notification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification service returned status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

// LogNotifier is the fallback when no notification service is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, fact models.NotificationOutbox) error {
	log.Printf("🔔 [NOTIFY] user=%s kind=%s ref=%s", fact.ExternalUserID, fact.Kind, fact.ReferenceID)
	return nil
}
