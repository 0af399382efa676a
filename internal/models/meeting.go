package models

import "time"

// Person is a name/email pair used for attendees, owners and recipients.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
}

// Meeting is a calendared or ad-hoc event owning zero or more recordings.
// StartTime and EndTime are zero when the provider did not report them.
type Meeting struct {
	ID              string    `json:"id"`
	Provider        string    `json:"provider"`
	ProviderEventID string    `json:"provider_event_id"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Timezone        string    `json:"timezone"`
	OrganizerName   string    `json:"organizer_name"`
	OrganizerEmail  string    `json:"organizer_email"`
	Attendees       []Person  `json:"attendees"`
}

// User is an organizer account the pipeline resolves OAuth tokens for.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
