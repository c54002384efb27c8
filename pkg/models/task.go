package models

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskHidden     TaskStatus = "hidden"
)

// TaskStatuses is the display order used by rollups.
var TaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskCompleted, TaskCancelled, TaskHidden}

func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Open reports whether work on the task is still expected.
func (s TaskStatus) Open() bool {
	return s == TaskPending || s == TaskInProgress
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// RecurrenceRule describes when a recurring task regenerates.
type RecurrenceRule struct {
	Frequency  Frequency  `json:"frequency"`
	Interval   int        `json:"interval"`
	DaysOfWeek []int      `json:"days_of_week,omitempty"` // 0 = Sunday
	DayOfMonth int        `json:"day_of_month,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// Task is a unit of tracked work inside an organization.
// Recurring tasks carry both RecurrenceRule and NextOccurrenceAt.
type Task struct {
	ID               string          `json:"id" db:"id"`
	OrgID            string          `json:"org_id" db:"org_id"`
	Title            string          `json:"title" db:"title"`
	Description      string          `json:"description,omitempty" db:"description"`
	Status           TaskStatus      `json:"status" db:"status"`
	Priority         TaskPriority    `json:"priority" db:"priority"`
	AssigneeID       string          `json:"assignee_id,omitempty" db:"assignee_id"`
	CreatorID        string          `json:"creator_id,omitempty" db:"creator_id"`
	DueDate          *time.Time      `json:"due_date,omitempty" db:"due_date"`
	RecurrenceRule   *RecurrenceRule `json:"recurrence_rule,omitempty" db:"recurrence_rule"`
	NextOccurrenceAt *time.Time      `json:"next_occurrence_at,omitempty" db:"next_occurrence_at"`
	ParentTaskID     string          `json:"parent_task_id,omitempty" db:"parent_task_id"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// IsRecurring reports whether the task carries a recurrence rule.
func (t Task) IsRecurring() bool {
	return t.RecurrenceRule != nil
}

// TaskQuery narrows ListTasks. Zero values match everything.
type TaskQuery struct {
	OrgID      string
	AssigneeID string
	Statuses   []TaskStatus
}

func (q TaskQuery) Matches(t Task) bool {
	if q.OrgID != "" && t.OrgID != q.OrgID {
		return false
	}
	if q.AssigneeID != "" && t.AssigneeID != q.AssigneeID {
		return false
	}
	if len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}
