package models

// Decision is one decision statement inside a topic group.
type Decision struct {
	Text       string  `json:"text"`
	Explicit   bool    `json:"explicit"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// DecisionGroup collects the decisions made on one topic.
type DecisionGroup struct {
	Topic string     `json:"topic"`
	Items []Decision `json:"items" validate:"dive"`
}

// ActionItem is a task extracted from the transcript. Deadline is a
// YYYY-MM-DD string once normalized; the extractor may emit looser values
// which normalization repairs.
type ActionItem struct {
	Text             string  `json:"text"`
	Owner            Person  `json:"owner"`
	Deadline         string  `json:"deadline"`
	DeadlineInferred bool    `json:"deadline_inferred"`
	Confidence       float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Followup is a drafted message to an attendee about their action item.
type Followup struct {
	To      Person `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// InternalNotes hold extractor bookkeeping that is never shown to end users.
type InternalNotes struct {
	OmittedActions []string `json:"omitted_actions"`
	Ambiguities    []string `json:"ambiguities"`
}

// Outcomes is the structured extraction result for one meeting. It is
// produced fresh per processing attempt and normalized before persistence.
type Outcomes struct {
	Decisions     []DecisionGroup `json:"decisions" validate:"dive"`
	ActionItems   []ActionItem    `json:"action_items" validate:"dive"`
	Followups     []Followup      `json:"followups" validate:"dive"`
	InternalNotes InternalNotes   `json:"internal_notes"`
}

// Artifact is the normalized outcome persisted once per meeting.
type Artifact struct {
	MeetingID string   `json:"meeting_id"`
	Outcomes  Outcomes `json:"outcomes"`
}
