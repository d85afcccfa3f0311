package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/stockpulse/social-ingest/internal/config"
	"github.com/stockpulse/social-ingest/internal/models"
)

// Notifier delivers operational alerts and digests.
type Notifier interface {
	SendHealthAlert(health *models.HealthStatus) error
	SendTrendingDigest(trending []models.TrendingSymbol) error
}

// Service sends notifications via a Teams webhook and/or SMTP email,
// whichever is configured.
type Service struct {
	config *config.Config
	client *resty.Client
}

var _ Notifier = (*Service)(nil)

// TeamsMessage is the MessageCard payload for a Teams webhook.
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a notification service.
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Enabled reports whether any delivery channel is configured.
func (s *Service) Enabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.AlertEmail != ""
}

// SendHealthAlert notifies operators that the sync pipeline degraded.
func (s *Service) SendHealthAlert(health *models.HealthStatus) error {
	subject := fmt.Sprintf("Stock ingestion pipeline %s", health.Status)

	var lines []string
	for _, issue := range health.Issues {
		lines = append(lines, fmt.Sprintf("%s - %s", issue.Issue, issue.Recommendation))
	}
	body := strings.Join(lines, "\n")

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   subject,
		Text:    fmt.Sprintf("Health check at %s found %d issue(s)", health.CheckedAt.Format("2006-01-02 15:04:05 UTC"), len(health.Issues)),
	}
	for _, issue := range health.Issues {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: issue.Issue,
			ActivityText:  issue.Recommendation,
			Markdown:      true,
		})
	}

	return s.deliver(subject, body, message)
}

// SendTrendingDigest sends the current trending-symbol ranking.
func (s *Service) SendTrendingDigest(trending []models.TrendingSymbol) error {
	subject := fmt.Sprintf("Trending stocks digest: %d symbols", len(trending))

	var lines []string
	facts := make([]TeamsFact, 0, len(trending))
	for i, rec := range trending {
		if i >= 10 {
			break
		}
		entry := fmt.Sprintf("%d mentions in %d communities, trend score %.2f",
			rec.MentionCount, len(rec.Communities), rec.TrendScore)
		lines = append(lines, fmt.Sprintf("%s: %s", rec.Symbol, entry))
		facts = append(facts, TeamsFact{Name: rec.Symbol, Value: entry})
	}
	body := strings.Join(lines, "\n")

	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   subject,
		Text:    "Top symbols by trend score",
		Sections: []TeamsSection{
			{Facts: facts, Markdown: true},
		},
	}

	return s.deliver(subject, body, message)
}

// deliver fans one notification out to every configured channel and
// joins per-channel failures.
func (s *Service) deliver(subject, body string, message *TeamsMessage) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(message); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Sent Teams notification")
		}
	}

	if s.config.AlertEmail != "" {
		if err := s.sendEmail(subject, body); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Sent email notification")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) sendEmail(subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.AlertEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	dialer := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
