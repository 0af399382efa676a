// Package delivery renders the organizer summary email and sends it over
// SMTP or Postmark.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meetrecap/internal/config"
	"meetrecap/internal/models"

	"gopkg.in/gomail.v2"
)

// DeliveryError reports a failed send. The pipeline treats it like any
// other stage error: the job retries and, because artifact persistence is
// write-once, a retry resends without recomputing.
type DeliveryError struct {
	Provider string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("email delivery via %s failed: %v", e.Provider, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Payload is everything the organizer email needs.
type Payload struct {
	OrganizerName  string
	OrganizerEmail string
	MeetingTitle   string
	MeetingDate    string
	Outcomes       *models.Outcomes
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, text string) error
}

// Mailer renders payloads and hands them to the configured sender.
type Mailer struct {
	sender Sender
}

func NewMailer(cfg config.EmailConfig) (*Mailer, error) {
	switch cfg.Provider {
	case "", "smtp":
		return &Mailer{sender: NewSMTPSender(cfg)}, nil
	case "postmark":
		if cfg.PostmarkToken == "" {
			return nil, fmt.Errorf("postmark token is required for postmark email")
		}
		return &Mailer{sender: NewPostmarkSender(cfg)}, nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
}

func newMailerWithSender(s Sender) *Mailer { return &Mailer{sender: s} }

// SendOrganizerEmail renders and sends the summary to the organizer.
func (m *Mailer) SendOrganizerEmail(ctx context.Context, p Payload) error {
	return m.sender.Send(ctx, p.OrganizerEmail, subject(p), renderBody(p))
}

func subject(p Payload) string {
	title := p.MeetingTitle
	if title == "" {
		title = "Meeting"
	}
	if p.MeetingDate != "" {
		return fmt.Sprintf("Decisions and Next Steps: %s (%s)", title, p.MeetingDate)
	}
	return fmt.Sprintf("Decisions and Next Steps: %s", title)
}

func renderBody(p Payload) string {
	name := p.OrganizerName
	if name == "" {
		name = "there"
	}
	title := p.MeetingTitle
	if title == "" {
		title = "Your meeting"
	}

	var decisionGroups []string
	for _, group := range p.Outcomes.Decisions {
		var items []string
		for _, item := range group.Items {
			items = append(items, fmt.Sprintf("- %s", item.Text))
		}
		decisionGroups = append(decisionGroups, fmt.Sprintf("Topic: %s\n%s", group.Topic, strings.Join(items, "\n")))
	}
	decisionsBlock := strings.Join(decisionGroups, "\n\n")
	if decisionsBlock == "" {
		decisionsBlock = "No decisions captured."
	}

	var actions []string
	for _, item := range p.Outcomes.ActionItems {
		actions = append(actions, fmt.Sprintf("- %s: %s by %s", item.Owner.Name, item.Text, item.Deadline))
	}
	actionsBlock := strings.Join(actions, "\n")
	if actionsBlock == "" {
		actionsBlock = "No action items captured."
	}

	var followups []string
	for _, f := range p.Outcomes.Followups {
		followups = append(followups, fmt.Sprintf("To: %s <%s>\nSubject: %s\nBody:\n%s",
			f.To.Name, f.To.Email, f.Subject, f.Body))
	}
	followupsBlock := strings.Join(followups, "\n\n")
	if followupsBlock == "" {
		followupsBlock = "No follow-ups generated."
	}

	return fmt.Sprintf(`Hi %s,

Here are the outcomes from %s.

Decisions (grouped by topic)
%s

Action Items
%s

Follow-up Drafts
%s

If anything looks off, reply and I will correct it.`,
		name, title, decisionsBlock, actionsBlock, followupsBlock)
}

// SMTPSender delivers over SMTP with optional auth.
type SMTPSender struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host: cfg.SMTPHost,
		port: port,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, text string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)

	dialer := gomail.NewDialer(s.host, s.port, s.user, s.pass)
	if err := dialer.DialAndSend(msg); err != nil {
		return &DeliveryError{Provider: "smtp", Err: err}
	}
	return nil
}

const postmarkEndpoint = "https://api.postmarkapp.com/email"

// PostmarkSender delivers through the Postmark HTTP API.
type PostmarkSender struct {
	token  string
	from   string
	client *http.Client
}

func NewPostmarkSender(cfg config.EmailConfig) *PostmarkSender {
	return &PostmarkSender{
		token:  cfg.PostmarkToken,
		from:   cfg.From,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type postmarkMessage struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
}

func (s *PostmarkSender) Send(ctx context.Context, to, subject, text string) error {
	body, err := json.Marshal(postmarkMessage{From: s.from, To: to, Subject: subject, TextBody: text})
	if err != nil {
		return &DeliveryError{Provider: "postmark", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkEndpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Provider: "postmark", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return &DeliveryError{Provider: "postmark", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return &DeliveryError{
			Provider: "postmark",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)),
		}
	}
	return nil
}
