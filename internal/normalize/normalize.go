// Package normalize applies the deterministic post-extraction rules:
// ownership filtering, deadline repair, and follow-up completeness.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"meetrecap/internal/models"
)

const deadlineFormat = "2006-01-02"

var deadlineRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// InferNextMeetingDate assumes a weekly cadence: seven days after the
// meeting start, or seven days from now when the start is unknown.
func InferNextMeetingDate(startTime time.Time) string {
	base := startTime
	if base.IsZero() {
		base = time.Now()
	}
	return base.AddDate(0, 0, 7).Format(deadlineFormat)
}

func validDeadline(s string) bool {
	if !deadlineRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(deadlineFormat, s)
	return err == nil
}

// Outcomes returns a normalized copy of out. Action items owned by someone
// outside the attendee list are dropped; invalid deadlines are replaced
// with nextMeetingDate and flagged as inferred; follow-ups addressed to
// non-attendees are dropped; every surviving action item owner ends up with
// exactly one follow-up, synthesized if the model did not draft one.
// Attendee email matching is case-insensitive throughout.
func Outcomes(out *models.Outcomes, attendees []models.Person, nextMeetingDate, meetingTitle string) *models.Outcomes {
	attendeeEmails := make(map[string]bool, len(attendees))
	for _, a := range attendees {
		attendeeEmails[strings.ToLower(a.Email)] = true
	}

	var actions []models.ActionItem
	for _, item := range out.ActionItems {
		if !attendeeEmails[strings.ToLower(item.Owner.Email)] {
			continue
		}
		if !validDeadline(item.Deadline) {
			inferred := nextMeetingDate
			if inferred == "" {
				inferred = InferNextMeetingDate(time.Time{})
			}
			item.Deadline = inferred
			item.DeadlineInferred = true
		}
		actions = append(actions, item)
	}

	// Last write wins per recipient, then synthesized drafts fill the gaps.
	followupFor := make(map[string]models.Followup)
	var order []string
	for _, f := range out.Followups {
		key := strings.ToLower(f.To.Email)
		if !attendeeEmails[key] {
			continue
		}
		if _, seen := followupFor[key]; !seen {
			order = append(order, key)
		}
		followupFor[key] = f
	}
	for _, item := range actions {
		key := strings.ToLower(item.Owner.Email)
		if _, seen := followupFor[key]; seen {
			continue
		}
		title := meetingTitle
		if title == "" {
			title = "today's meeting"
		}
		followupFor[key] = models.Followup{
			To:      item.Owner,
			Subject: fmt.Sprintf("Follow-up from %s", title),
			Body: fmt.Sprintf("Hey %s - from today's meeting, you're owning %s by %s. Let me know if anything's blocking you.",
				item.Owner.Name, item.Text, item.Deadline),
		}
		order = append(order, key)
	}
	var followups []models.Followup
	for _, key := range order {
		followups = append(followups, followupFor[key])
	}

	return &models.Outcomes{
		Decisions:     out.Decisions,
		ActionItems:   actions,
		Followups:     followups,
		InternalNotes: out.InternalNotes,
	}
}
