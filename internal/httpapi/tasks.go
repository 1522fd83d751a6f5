package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/taskboard/internal/tasks"
)

type deleteTaskResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q, verr := parseListQuery(r)
	if verr != nil {
		respondValidation(w, verr)
		return
	}

	list, err := s.tasks.List(q)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	task, err := s.tasks.Create(req)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	s.metrics.ObserveTaskEvent(string(tasks.EventTaskCreated))
	s.metrics.SetTasksStored(s.tasks.Count())
	respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	task, err := s.tasks.Get(id)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}
	var patch tasks.Patch
	if !s.decodeBody(w, r, &patch) {
		return
	}

	task, err := s.tasks.Update(id, patch)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	s.metrics.ObserveTaskEvent(string(tasks.EventTaskUpdated))
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	if _, err := s.tasks.Delete(id); err != nil {
		respondTaskError(w, err)
		return
	}
	s.metrics.ObserveTaskEvent(string(tasks.EventTaskDeleted))
	s.metrics.SetTasksStored(s.tasks.Count())
	respondJSON(w, http.StatusOK, deleteTaskResponse{
		Message: fmt.Sprintf("Task %d deleted successfully", id),
	})
}

func (s *Server) handleTaskSummary(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.tasks.Summary())
}

// decodeBody writes the error response itself and reports whether the handler
// may continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	err := decodeJSON(w, r, out)
	if err == nil {
		return true
	}
	var verr *tasks.ValidationError
	switch {
	case errors.Is(err, errEmptyBody):
		respondValidation(w, tasks.NewValidationError("body", "field required"))
	case errors.As(err, &verr):
		respondValidation(w, verr)
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
	return false
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondValidation(w, tasks.NewValidationError("id", "must be an integer"))
		return 0, false
	}
	return id, true
}

func parseListQuery(r *http.Request) (tasks.ListQuery, *tasks.ValidationError) {
	values := r.URL.Query()
	q := tasks.ListQuery{
		Status:   tasks.TaskStatus(strings.TrimSpace(values.Get("status"))),
		Priority: tasks.TaskPriority(strings.TrimSpace(values.Get("priority"))),
		Limit:    tasks.DefaultListLimit,
	}

	verr := &tasks.ValidationError{}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, tasks.FieldError{Field: "limit", Message: "must be an integer"})
		}
		q.Limit = n
	}
	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Fields = append(verr.Fields, tasks.FieldError{Field: "offset", Message: "must be an integer"})
		}
		q.Offset = n
	}
	if len(verr.Fields) > 0 {
		return tasks.ListQuery{}, verr
	}
	return q, nil
}
