package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/recurrence"
	"bizhub-backend/pkg/taskview"
	"bizhub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TasksHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	logger *zap.Logger
	now    func() time.Time
}

func NewTasksHandler(cfg *config.Config, db database.DatabaseInterface, logger *zap.Logger) *TasksHandler {
	return &TasksHandler{config: cfg, db: db, logger: nopIfNil(logger).Named("tasks"), now: time.Now}
}

// visibleTasks loads the tasks of the caller's scope and drops the ones
// the caller may not see.
func (h *TasksHandler) visibleTasks(w http.ResponseWriter, r *http.Request, caller *models.Profile) ([]models.Task, bool) {
	scope, ok := orgScope(w, caller, r.URL.Query().Get("org_id"))
	if !ok {
		return nil, false
	}
	tasks, err := h.db.ListTasks(r.Context(), models.TaskQuery{OrgID: scope})
	if err != nil {
		writeStoreError(w, h.logger, err, "tasks")
		return nil, false
	}
	return taskview.Visible(*caller, tasks), true
}

// loadTask fetches a task the caller may see. Tasks outside the caller's
// visibility answer 404.
func (h *TasksHandler) loadTask(w http.ResponseWriter, r *http.Request, caller *models.Profile) (*models.Task, bool) {
	task, err := h.db.GetTask(r.Context(), chiRoute.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, h.logger, err, "task")
		return nil, false
	}
	if !taskview.CanSee(*caller, *task) {
		utils.WriteNotFoundResponse(w, "task not found")
		return nil, false
	}
	return task, true
}

// GET /api/tasks?view=&assignee=
func (h *TasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	view, err := taskview.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		utils.WriteBadRequestResponse(w, err.Error())
		return
	}
	visible, ok := h.visibleTasks(w, r, caller)
	if !ok {
		return
	}
	tasks := taskview.Filter(visible, taskview.Options{
		View:     view,
		Assignee: r.URL.Query().Get("assignee"),
		UserID:   caller.ID,
		Now:      h.now(),
	})
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"tasks":  tasks,
		"counts": taskview.CountByStatus(visible),
		"view":   view,
	})
}

// GET /api/tasks/rollup
func (h *TasksHandler) Rollup(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	visible, ok := h.visibleTasks(w, r, caller)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"counts": taskview.CountByStatus(visible)})
}

type taskRequest struct {
	OrgID          *string                `json:"org_id"`
	Title          *string                `json:"title"`
	Description    *string                `json:"description"`
	Status         *models.TaskStatus     `json:"status"`
	Priority       *models.TaskPriority   `json:"priority"`
	AssigneeID     *string                `json:"assignee_id"`
	DueDate        *time.Time             `json:"due_date"`
	ClearDueDate   bool                   `json:"clear_due_date"`
	RecurrenceRule *models.RecurrenceRule `json:"recurrence_rule"`
	ClearRule      bool                   `json:"clear_recurrence"`
}

// apply copies the request onto t and validates the result.
func (req taskRequest) apply(t *models.Task, now time.Time) error {
	if req.Title != nil {
		t.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.AssigneeID != nil {
		t.AssigneeID = *req.AssigneeID
	}
	switch {
	case req.ClearDueDate:
		t.DueDate = nil
	case req.DueDate != nil:
		due := req.DueDate.UTC()
		t.DueDate = &due
	}
	switch {
	case req.ClearRule:
		t.RecurrenceRule = nil
	case req.RecurrenceRule != nil:
		rule := *req.RecurrenceRule
		t.RecurrenceRule = &rule
	}

	if t.Title == "" {
		return errors.New("title required")
	}
	if !t.Status.Valid() {
		return errors.New("unknown status")
	}
	if !t.Priority.Valid() {
		return errors.New("unknown priority")
	}
	if t.Status.Open() || t.Status == models.TaskHidden {
		t.CompletedAt = nil
	}
	err := recurrence.Schedule(t, now)
	if errors.Is(err, recurrence.ErrEnded) && !t.Status.Open() {
		// a closed task at the end of its series simply stops recurring
		t.RecurrenceRule = nil
		t.NextOccurrenceAt = nil
		return nil
	}
	return err
}

// POST /api/tasks
func (h *TasksHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if !caller.Role.IsStaff() {
		utils.WriteForbiddenResponse(w, "Clients cannot create tasks")
		return
	}
	var req taskRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	task := &models.Task{
		OrgID:     caller.OrgID,
		Status:    models.TaskPending,
		Priority:  models.PriorityMedium,
		CreatorID: caller.ID,
	}
	if req.OrgID != nil && caller.Role == models.RoleAdmin {
		task.OrgID = *req.OrgID
	}
	if task.OrgID == "" {
		utils.WriteBadRequestResponse(w, "No organization selected")
		return
	}
	if err := req.apply(task, h.now()); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid task", err.Error())
		return
	}
	if task.Status == models.TaskCompleted {
		utils.WriteValidationErrorResponse(w, "Invalid task", "new tasks cannot start completed")
		return
	}

	if err := h.db.CreateTask(r.Context(), task); err != nil {
		writeStoreError(w, h.logger, err, "task")
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"task": task})
}

// GET /api/tasks/{id}
func (h *TasksHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	task, ok := h.loadTask(w, r, caller)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// PUT /api/tasks/{id}
//
// Clients may only move the status of tasks assigned to them. Setting
// status to completed goes through the same path as /complete.
func (h *TasksHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	task, ok := h.loadTask(w, r, caller)
	if !ok {
		return
	}
	var req taskRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if caller.Role.IsClient() {
		if task.AssigneeID != caller.ID {
			utils.WriteForbiddenResponse(w, "Clients may only update tasks assigned to them")
			return
		}
		req = taskRequest{Status: req.Status}
	}

	completing := req.Status != nil && *req.Status == models.TaskCompleted && task.Status != models.TaskCompleted
	if completing {
		req.Status = nil
	}
	if err := req.apply(task, h.now()); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid task", err.Error())
		return
	}
	if completing {
		h.complete(w, r, task)
		return
	}
	if err := h.db.UpdateTask(r.Context(), task); err != nil {
		writeStoreError(w, h.logger, err, "task")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// DELETE /api/tasks/{id}
func (h *TasksHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	if !caller.Role.IsStaff() {
		utils.WriteForbiddenResponse(w, "Clients cannot delete tasks")
		return
	}
	task, ok := h.loadTask(w, r, caller)
	if !ok {
		return
	}
	if !caller.Role.CanManage() && task.CreatorID != caller.ID {
		utils.WriteForbiddenResponse(w, "Only the creator or a manager can delete this task")
		return
	}
	if err := h.db.DeleteTask(r.Context(), task.ID); err != nil {
		writeStoreError(w, h.logger, err, "task")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"id": task.ID})
}

// POST /api/tasks/{id}/complete
func (h *TasksHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentProfile(w, r)
	if !ok {
		return
	}
	task, ok := h.loadTask(w, r, caller)
	if !ok {
		return
	}
	if caller.Role.IsClient() && task.AssigneeID != caller.ID {
		utils.WriteForbiddenResponse(w, "Clients may only complete tasks assigned to them")
		return
	}
	if task.Status == models.TaskCompleted {
		utils.WriteConflictResponse(w, "Task already completed")
		return
	}
	h.complete(w, r, task)
}

// complete marks task done and, for recurring tasks, creates the next
// occurrence. The response carries both.
func (h *TasksHandler) complete(w http.ResponseWriter, r *http.Request, task *models.Task) {
	now := h.now().UTC()
	task.Status = models.TaskCompleted
	task.CompletedAt = &now

	var nextTask *models.Task
	if next, ok := recurrence.Successor(*task, now); ok {
		nextTask = &next
	}
	if err := h.db.CompleteTask(r.Context(), task, nextTask); err != nil {
		writeStoreError(w, h.logger, err, "task")
		return
	}

	data := map[string]interface{}{"task": task}
	if nextTask != nil {
		h.logger.Debug("recurring task rolled over",
			zap.String("task_id", task.ID),
			zap.String("next_id", nextTask.ID),
			zap.Timep("due", nextTask.DueDate))
		data["next_task"] = nextTask
	}
	utils.WriteSuccessResponse(w, data)
}
