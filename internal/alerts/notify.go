package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
)

// Notifier delivers a batch of findings to one channel. Notifiers receive
// findings only after the audit log write succeeds; delivery failures are
// reported but never roll the audit log back.
type Notifier interface {
	Notify(ctx context.Context, tenant string, triggeredAt time.Time, findings []Finding) error
}

// notification is the wire payload shared by the delivery channels.
type notification struct {
	Tenant      string    `json:"tenant"`
	TriggeredAt time.Time `json:"triggeredAt"`
	Alerts      []Finding `json:"alerts"`
}

// EmailNotifier sends a plain-text digest over SMTP.
type EmailNotifier struct {
	cfg config.Email
}

// NewEmailNotifier builds a notifier from the tenant's email settings.
func NewEmailNotifier(cfg config.Email) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

func (n *EmailNotifier) Notify(ctx context.Context, tenant string, triggeredAt time.Time, findings []Finding) error {
	if len(n.cfg.Recipients) == 0 {
		return fmt.Errorf("email notifier: no recipients configured")
	}
	username := os.Getenv(n.cfg.UsernameEnv)
	password := os.Getenv(n.cfg.PasswordEnv)
	if username == "" || password == "" {
		return fmt.Errorf("email notifier: missing SMTP credentials in env vars %q/%q", n.cfg.UsernameEnv, n.cfg.PasswordEnv)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", n.cfg.Sender)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(n.cfg.Recipients, ", "))
	fmt.Fprintf(&body, "Subject: [%s] %d operational alert(s)\r\n", tenant, len(findings))
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&body, "Triggered at %s\r\n\r\n", triggeredAt.UTC().Format(time.RFC3339))
	for _, f := range findings {
		fmt.Fprintf(&body, "[%s] %s: %s\r\n", strings.ToUpper(f.Severity), f.Rule, f.Detail)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	auth := smtp.PlainAuth("", username, password, n.cfg.SMTPHost)
	if err := smtp.SendMail(addr, auth, n.cfg.Sender, n.cfg.Recipients, []byte(body.String())); err != nil {
		return fmt.Errorf("email notifier: send via %s: %w", addr, err)
	}
	return nil
}

// WebhookNotifier posts the findings payload as JSON. Deliveries go through
// a circuit breaker so a dead endpoint fails fast for the rest of a run
// instead of eating the full timeout per batch.
type WebhookNotifier struct {
	cfg     config.Webhook
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewWebhookNotifier builds a notifier from the tenant's webhook settings.
func NewWebhookNotifier(cfg config.Webhook, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookNotifier{
		cfg:    cfg,
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "alert-webhook",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
		}),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, tenant string, triggeredAt time.Time, findings []Finding) error {
	payload, err := json.Marshal(notification{
		Tenant:      tenant,
		TriggeredAt: triggeredAt.UTC(),
		Alerts:      findings,
	})
	if err != nil {
		return fmt.Errorf("webhook notifier: marshal payload: %w", err)
	}

	_, err = n.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token := os.Getenv(n.cfg.BearerTokenEnv); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("endpoint returned %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("webhook notifier: post to %s: %w", n.cfg.URL, err)
	}
	return nil
}
