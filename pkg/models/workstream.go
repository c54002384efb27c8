package models

import "time"

// StatusColor is the traffic-light health of a workstream entry.
type StatusColor string

const (
	StatusRed    StatusColor = "red"
	StatusYellow StatusColor = "yellow"
	StatusGreen  StatusColor = "green"
)

func (c StatusColor) Valid() bool {
	return c == StatusRed || c == StatusYellow || c == StatusGreen
}

type Workstream struct {
	ID        string    `json:"id" db:"id"`
	OrgID     string    `json:"org_id" db:"org_id"`
	Name      string    `json:"name" db:"name"`
	Vertical  string    `json:"vertical" db:"vertical"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type WorkstreamEntry struct {
	ID           string      `json:"id" db:"id"`
	WorkstreamID string      `json:"workstream_id" db:"workstream_id"`
	OrgID        string      `json:"org_id" db:"org_id"`
	Vertical     string      `json:"vertical" db:"vertical"`
	Title        string      `json:"title" db:"title"`
	Status       StatusColor `json:"status" db:"status"`
	Note         string      `json:"note,omitempty" db:"note"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// VerticalStatusRollup is a display projection over workstream entries.
// It has no persisted identity.
type VerticalStatusRollup struct {
	Vertical string `json:"vertical"`
	Red      int    `json:"red"`
	Yellow   int    `json:"yellow"`
	Green    int    `json:"green"`
	Total    int    `json:"total"`
}
