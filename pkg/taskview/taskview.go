// Package taskview filters already-fetched tasks the way the task pages
// present them: by role visibility, view tab and assignee.
package taskview

import (
	"fmt"
	"time"

	"bizhub-backend/pkg/models"
)

// View is one of the task page tabs.
type View string

const (
	ViewAll       View = "all"
	ViewMy        View = "my"
	ViewCreated   View = "created"
	ViewOverdue   View = "overdue"
	ViewRecurring View = "recurring"
	ViewCompleted View = "completed"
	ViewHidden    View = "hidden"
)

// AssigneeUnassigned selects tasks without an assignee.
const AssigneeUnassigned = "unassigned"

// ParseView maps a query value to a View; empty means ViewAll.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case "":
		return ViewAll, nil
	case ViewAll, ViewMy, ViewCreated, ViewOverdue, ViewRecurring, ViewCompleted, ViewHidden:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// Options drives Filter. UserID is the caller, used by the my/created views.
type Options struct {
	View     View
	Assignee string
	UserID   string
	Now      time.Time
}

// Visible returns the tasks the profile may see: managers and admins see
// the whole organization, users and clients only what they are assigned
// or created, client_no_access sees nothing.
func Visible(p models.Profile, tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if CanSee(p, t) {
			out = append(out, t)
		}
	}
	return out
}

// CanSee reports whether p may see t.
func CanSee(p models.Profile, t models.Task) bool {
	switch {
	case p.Role == models.RoleClientNoAccess || !p.Role.Valid():
		return false
	case t.OrgID != p.OrgID && p.Role != models.RoleAdmin:
		return false
	case p.Role.CanManage():
		return true
	default:
		return t.AssigneeID == p.ID || t.CreatorID == p.ID
	}
}

// Filter applies the view tab and assignee filter, preserving order.
func Filter(tasks []models.Task, opts Options) []models.Task {
	view := opts.View
	if view == "" {
		view = ViewAll
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if inView(t, view, opts.UserID, now) && matchAssignee(t, opts.Assignee) {
			out = append(out, t)
		}
	}
	return out
}

func inView(t models.Task, view View, userID string, now time.Time) bool {
	if view == ViewHidden {
		return t.Status == models.TaskHidden
	}
	if t.Status == models.TaskHidden {
		return false
	}
	switch view {
	case ViewMy:
		return userID != "" && t.AssigneeID == userID
	case ViewCreated:
		return userID != "" && t.CreatorID == userID
	case ViewOverdue:
		return t.Status.Open() && t.DueDate != nil && t.DueDate.Before(now)
	case ViewRecurring:
		return t.IsRecurring()
	case ViewCompleted:
		return t.Status == models.TaskCompleted
	default:
		return true
	}
}

func matchAssignee(t models.Task, assignee string) bool {
	switch assignee {
	case "":
		return true
	case AssigneeUnassigned:
		return t.AssigneeID == ""
	default:
		return t.AssigneeID == assignee
	}
}

// StatusCounts is the rollup of tasks by status.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Hidden     int `json:"hidden"`
	Total      int `json:"total"`
}

// CountByStatus counts tasks per status. Tasks with an unknown status
// only count towards Total.
func CountByStatus(tasks []models.Task) StatusCounts {
	var c StatusCounts
	for _, t := range tasks {
		c.Total++
		switch t.Status {
		case models.TaskPending:
			c.Pending++
		case models.TaskInProgress:
			c.InProgress++
		case models.TaskCompleted:
			c.Completed++
		case models.TaskCancelled:
			c.Cancelled++
		case models.TaskHidden:
			c.Hidden++
		}
	}
	return c
}
