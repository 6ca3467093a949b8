package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
)

func TestWebhookNotifier_PostsPayload(t *testing.T) {
	var (
		gotAuth string
		gotBody []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	t.Setenv("ALERT_WEBHOOK_TOKEN", "s3cret")
	notifier := NewWebhookNotifier(config.Webhook{
		Enabled:        true,
		URL:            server.URL,
		BearerTokenEnv: "ALERT_WEBHOOK_TOKEN",
	}, server.Client())

	triggeredAt := time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC)
	findings := []Finding{{Rule: RuleYardCongestion, Severity: SeverityHigh, Detail: "2026-01-15 location=yard-1 avg_time_in_yard=120.0m"}}
	require.NoError(t, notifier.Notify(context.Background(), "acme", triggeredAt, findings))

	assert.Equal(t, "Bearer s3cret", gotAuth)

	var payload struct {
		Tenant      string    `json:"tenant"`
		TriggeredAt time.Time `json:"triggeredAt"`
		Alerts      []struct {
			Name     string `json:"name"`
			Severity string `json:"severity"`
			Details  string `json:"details"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "acme", payload.Tenant)
	assert.True(t, payload.TriggeredAt.Equal(triggeredAt))
	require.Len(t, payload.Alerts, 1)
	assert.Equal(t, RuleYardCongestion, payload.Alerts[0].Name)
	assert.Equal(t, SeverityHigh, payload.Alerts[0].Severity)
}

func TestWebhookNotifier_ErrorStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(config.Webhook{URL: server.URL}, server.Client())
	err := notifier.Notify(context.Background(), "acme", time.Now(), []Finding{{Rule: RuleARAgingRisk}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestEmailNotifier_RequiresCredentials(t *testing.T) {
	t.Setenv("TEST_SMTP_USERNAME", "")
	t.Setenv("TEST_SMTP_PASSWORD", "")

	notifier := NewEmailNotifier(config.Email{
		Enabled:     true,
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		Sender:      "alerts@example.com",
		Recipients:  []string{"ops@example.com"},
		UsernameEnv: "TEST_SMTP_USERNAME",
		PasswordEnv: "TEST_SMTP_PASSWORD",
	})

	err := notifier.Notify(context.Background(), "acme", time.Now(), []Finding{{Rule: RuleYardCongestion}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP credentials")
}
