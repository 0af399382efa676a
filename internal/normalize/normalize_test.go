package normalize

import (
	"strings"
	"testing"
	"time"

	"meetrecap/internal/models"
)

var attendees = []models.Person{
	{Name: "Alice", Email: "alice@example.com"},
	{Name: "Bob", Email: "bob@example.com"},
}

func TestInferNextMeetingDate(t *testing.T) {
	start := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if got := InferNextMeetingDate(start); got != "2026-03-17" {
		t.Fatalf("expected 2026-03-17, got %s", got)
	}

	got := InferNextMeetingDate(time.Time{})
	want := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestOutcomesDropsNonAttendeeOwners(t *testing.T) {
	out := &models.Outcomes{
		ActionItems: []models.ActionItem{
			{Text: "Ship the report", Owner: models.Person{Name: "Alice", Email: "ALICE@Example.com"}, Deadline: "2026-03-17"},
			{Text: "Review budget", Owner: models.Person{Name: "Mallory", Email: "mallory@other.com"}, Deadline: "2026-03-17"},
		},
	}

	got := Outcomes(out, attendees, "2026-03-17", "Weekly Sync")
	if len(got.ActionItems) != 1 {
		t.Fatalf("expected 1 action item, got %d", len(got.ActionItems))
	}
	if got.ActionItems[0].Owner.Email != "ALICE@Example.com" {
		t.Fatalf("wrong survivor: %+v", got.ActionItems[0])
	}
}

func TestOutcomesRepairsInvalidDeadline(t *testing.T) {
	cases := []string{"", "soon", "2026-3-7", "2026-13-40", "next Friday"}
	for _, deadline := range cases {
		out := &models.Outcomes{
			ActionItems: []models.ActionItem{
				{Text: "Do the thing", Owner: attendees[0], Deadline: deadline},
			},
		}
		got := Outcomes(out, attendees, "2026-03-17", "")
		item := got.ActionItems[0]
		if item.Deadline != "2026-03-17" {
			t.Errorf("deadline %q: expected repair to 2026-03-17, got %q", deadline, item.Deadline)
		}
		if !item.DeadlineInferred {
			t.Errorf("deadline %q: expected deadline_inferred to be set", deadline)
		}
	}
}

func TestOutcomesKeepsValidDeadline(t *testing.T) {
	out := &models.Outcomes{
		ActionItems: []models.ActionItem{
			{Text: "Do the thing", Owner: attendees[0], Deadline: "2026-04-01"},
		},
	}
	got := Outcomes(out, attendees, "2026-03-17", "")
	item := got.ActionItems[0]
	if item.Deadline != "2026-04-01" || item.DeadlineInferred {
		t.Fatalf("valid deadline was modified: %+v", item)
	}
}

func TestOutcomesRepairWithoutNextMeetingDate(t *testing.T) {
	out := &models.Outcomes{
		ActionItems: []models.ActionItem{
			{Text: "Do the thing", Owner: attendees[0], Deadline: "bad"},
		},
	}
	got := Outcomes(out, attendees, "", "")
	want := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	if got.ActionItems[0].Deadline != want {
		t.Fatalf("expected %s, got %s", want, got.ActionItems[0].Deadline)
	}
}

func TestOutcomesFollowupCompleteness(t *testing.T) {
	out := &models.Outcomes{
		ActionItems: []models.ActionItem{
			{Text: "prepare the deck", Owner: attendees[0], Deadline: "2026-03-17"},
			{Text: "book the room", Owner: attendees[1], Deadline: "2026-03-17"},
		},
		Followups: []models.Followup{
			{To: models.Person{Name: "Alice", Email: "Alice@example.com"}, Subject: "Model draft", Body: "Drafted by the model."},
			{To: models.Person{Name: "Mallory", Email: "mallory@other.com"}, Subject: "Should vanish", Body: "x"},
		},
	}

	got := Outcomes(out, attendees, "2026-03-17", "Weekly Sync")
	if len(got.Followups) != 2 {
		t.Fatalf("expected 2 followups, got %d", len(got.Followups))
	}

	byEmail := make(map[string]models.Followup)
	for _, f := range got.Followups {
		byEmail[strings.ToLower(f.To.Email)] = f
	}
	if f, ok := byEmail["alice@example.com"]; !ok || f.Subject != "Model draft" {
		t.Fatalf("model-drafted followup was not kept: %+v", byEmail)
	}
	bob, ok := byEmail["bob@example.com"]
	if !ok {
		t.Fatalf("missing synthesized followup for bob: %+v", byEmail)
	}
	if bob.Subject != "Follow-up from Weekly Sync" {
		t.Fatalf("wrong synthesized subject: %q", bob.Subject)
	}
	wantBody := "Hey Bob - from today's meeting, you're owning book the room by 2026-03-17. Let me know if anything's blocking you."
	if bob.Body != wantBody {
		t.Fatalf("wrong synthesized body:\n got: %q\nwant: %q", bob.Body, wantBody)
	}
}

func TestOutcomesSynthesizedSubjectWithoutTitle(t *testing.T) {
	out := &models.Outcomes{
		ActionItems: []models.ActionItem{
			{Text: "send notes", Owner: attendees[0], Deadline: "2026-03-17"},
		},
	}
	got := Outcomes(out, attendees, "2026-03-17", "")
	if got.Followups[0].Subject != "Follow-up from today's meeting" {
		t.Fatalf("wrong subject: %q", got.Followups[0].Subject)
	}
}

func TestOutcomesLastFollowupWins(t *testing.T) {
	out := &models.Outcomes{
		Followups: []models.Followup{
			{To: attendees[0], Subject: "first", Body: "a"},
			{To: models.Person{Name: "Alice", Email: "ALICE@EXAMPLE.COM"}, Subject: "second", Body: "b"},
		},
	}
	got := Outcomes(out, attendees, "2026-03-17", "")
	if len(got.Followups) != 1 {
		t.Fatalf("expected 1 followup, got %d", len(got.Followups))
	}
	if got.Followups[0].Subject != "second" {
		t.Fatalf("expected last write to win, got %q", got.Followups[0].Subject)
	}
}

func TestOutcomesPassesThroughDecisionsAndNotes(t *testing.T) {
	out := &models.Outcomes{
		Decisions: []models.DecisionGroup{
			{Topic: "Budget", Items: []models.Decision{{Text: "Approved Q2 plan", Explicit: true, Confidence: 0.9}}},
		},
		InternalNotes: models.InternalNotes{OmittedActions: []string{"unclear owner for audit"}},
	}
	got := Outcomes(out, attendees, "2026-03-17", "")
	if len(got.Decisions) != 1 || got.Decisions[0].Topic != "Budget" {
		t.Fatalf("decisions were modified: %+v", got.Decisions)
	}
	if len(got.InternalNotes.OmittedActions) != 1 {
		t.Fatalf("internal notes were modified: %+v", got.InternalNotes)
	}
}
