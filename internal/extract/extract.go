// Package extract derives structured meeting outcomes from a transcript
// using a chat model.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meetrecap/internal/config"
	"meetrecap/internal/models"
	"meetrecap/internal/retry"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-playground/validator/v10"
	"google.golang.org/genai"
)

// SchemaValidationError reports model output that parsed as JSON but did
// not satisfy the outcome schema. It is never retried: the same transcript
// with the same prompt tends to fail the same way.
type SchemaValidationError struct {
	Err error
}

func (e *SchemaValidationError) Error() string {
	return "extraction output failed schema validation: " + e.Err.Error()
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// MeetingContext is the meeting metadata presented to the model alongside
// the transcript.
type MeetingContext struct {
	Title           string
	StartTime       time.Time
	Timezone        string
	OrganizerName   string
	OrganizerEmail  string
	Attendees       []models.Person
	NextMeetingDate string
}

const systemPrompt = "You are a precise meeting outcomes extractor."

const promptRules = `You extract decisions, action items, and follow-up drafts from meeting transcripts.

Rules:
- Decisions are in past tense and grouped by topic.
- Action items start with a verb and must have an owner from the attendee list.
- Deadlines must be YYYY-MM-DD. If no deadline is mentioned, infer it as the next meeting date if provided.
- If the owner is unclear, omit the action item and add it to internal_notes.omitted_actions.
- Do not include transcript quotes in any user-facing field.
- Respond with a single JSON object matching this shape, and nothing else:
{"decisions":[{"topic":"...","items":[{"text":"...","explicit":true,"confidence":0.9}]}],"action_items":[{"text":"...","owner":{"name":"...","email":"..."},"deadline":"YYYY-MM-DD","deadline_inferred":false,"confidence":0.9}],"followups":[{"to":{"name":"...","email":"..."},"subject":"...","body":"..."}],"internal_notes":{"omitted_actions":[],"ambiguities":[]}}`

// Extractor holds a configured chat model and the retry policy for calls
// to it.
type Extractor struct {
	chatModel model.ToolCallingChatModel
	policy    retry.Policy
	maxChars  int
	validate  *validator.Validate
}

// New builds an extractor for the configured provider. Supported providers
// are openai, gemini, and claude.
func New(ctx context.Context, cfg config.ExtractionConfig) (*Extractor, error) {
	var chatModel model.ToolCallingChatModel
	var err error

	switch cfg.Provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 4000,
		})
	default:
		return nil, fmt.Errorf("invalid extraction provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create extraction model: %w", err)
	}

	return &Extractor{
		chatModel: chatModel,
		policy:    retry.FromConfig(cfg.Retry),
		maxChars:  cfg.MaxTranscriptChars,
		validate:  validator.New(),
	}, nil
}

// newWithModel is the test seam.
func newWithModel(m model.ToolCallingChatModel, policy retry.Policy, maxChars int) *Extractor {
	return &Extractor{chatModel: m, policy: policy, maxChars: maxChars, validate: validator.New()}
}

// Extract prompts the model with the meeting context and transcript and
// returns validated outcomes.
func (e *Extractor) Extract(ctx context.Context, meeting MeetingContext, segments []models.TranscriptSegment) (*models.Outcomes, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: e.buildPrompt(meeting, segments)},
	}

	var out *models.Outcomes
	err := e.policy.Do(ctx, func() error {
		resp, err := e.chatModel.Generate(ctx, messages)
		if err != nil {
			return fmt.Errorf("extraction generate: %w", err)
		}
		parsed, err := e.parse(resp.Content)
		if err != nil {
			return err
		}
		out = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Extractor) buildPrompt(meeting MeetingContext, segments []models.TranscriptSegment) string {
	var attendees []string
	for _, a := range meeting.Attendees {
		attendees = append(attendees, fmt.Sprintf("%s <%s>", a.Name, a.Email))
	}
	attendeeList := strings.Join(attendees, ", ")
	if attendeeList == "" {
		attendeeList = "None"
	}

	var lines []string
	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("%s: %s", s.Speaker, s.Text))
	}
	transcript := strings.Join(lines, "\n")
	// Keep the tail: late discussion carries the decisions and commitments.
	if e.maxChars > 0 && len(transcript) > e.maxChars {
		transcript = transcript[len(transcript)-e.maxChars:]
	}

	title := meeting.Title
	if title == "" {
		title = "Untitled"
	}
	start := "Unknown"
	if !meeting.StartTime.IsZero() {
		start = meeting.StartTime.Format(time.RFC3339)
	}
	timezone := meeting.Timezone
	if timezone == "" {
		timezone = "Unknown"
	}
	nextMeeting := meeting.NextMeetingDate
	if nextMeeting == "" {
		nextMeeting = "Unknown"
	}

	return fmt.Sprintf(`%s

Attendees: %s
Meeting title: %s
Meeting start: %s
Meeting timezone: %s
Next meeting date: %s

Transcript:
%s`, promptRules, attendeeList, title, start, timezone, nextMeeting, transcript)
}

func (e *Extractor) parse(content string) (*models.Outcomes, error) {
	raw := stripJSONFence(content)
	var out models.Outcomes
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &SchemaValidationError{Err: fmt.Errorf("decode extraction output: %w", err)}
	}
	if err := e.validate.Struct(&out); err != nil {
		return nil, &SchemaValidationError{Err: err}
	}
	return &out, nil
}

// stripJSONFence removes a surrounding markdown code fence if the model
// added one despite the prompt.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
