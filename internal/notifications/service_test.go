package notifications

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpulse/social-ingest/internal/config"
	"github.com/stockpulse/social-ingest/internal/models"
)

func TestService_Enabled(t *testing.T) {
	tests := []struct {
		name       string
		webhookURL string
		alertEmail string
		expected   bool
	}{
		{
			name:       "Teams webhook configured",
			webhookURL: "https://example.webhook.office.com/hook",
			expected:   true,
		},
		{
			name:       "Alert email configured",
			alertEmail: "oncall@example.com",
			expected:   true,
		},
		{
			name:     "Nothing configured",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(&config.Config{
				TeamsWebhookURL: tt.webhookURL,
				AlertEmail:      tt.alertEmail,
			})
			assert.Equal(t, tt.expected, service.Enabled())
		})
	}
}

func TestService_SendHealthAlert_Teams(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})

	health := &models.HealthStatus{
		Status:    "unhealthy",
		CheckedAt: time.Now(),
		Issues: []models.HealthIssue{
			{Issue: "no successful sync recorded", Recommendation: "trigger an initial sync"},
		},
	}

	require.NoError(t, service.SendHealthAlert(health))
	assert.Equal(t, "MessageCard", received.Type)
	assert.Contains(t, received.Title, "unhealthy")
	require.Len(t, received.Sections, 1)
	assert.Equal(t, "no successful sync recorded", received.Sections[0].ActivityTitle)
}

func TestService_SendHealthAlert_WebhookFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})

	err := service.SendHealthAlert(&models.HealthStatus{Status: "degraded", CheckedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Teams")
}

func TestService_SendTrendingDigest_CapsAtTen(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{TeamsWebhookURL: server.URL})

	trending := make([]models.TrendingSymbol, 15)
	for i := range trending {
		trending[i] = models.TrendingSymbol{Symbol: "SYM", MentionCount: 15 - i}
	}

	require.NoError(t, service.SendTrendingDigest(trending))
	require.Len(t, received.Sections, 1)
	assert.Len(t, received.Sections[0].Facts, 10)
}

func TestService_NoChannels_NoError(t *testing.T) {
	service := NewService(&config.Config{})

	// with no channel configured delivery is a no-op
	assert.NoError(t, service.SendHealthAlert(&models.HealthStatus{Status: "healthy", CheckedAt: time.Now()}))
}
