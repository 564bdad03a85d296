package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"crmapi/internal/database"
	"crmapi/internal/logger"
	"crmapi/internal/metrics"
	"crmapi/internal/models"
	"crmapi/internal/rbac"
)

func GetTasks(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireMember(w, r)
	if !ok {
		return
	}

	sendCachedList(w, r, authCtx.OrgID, "tasks", "Tasks retrieved successfully", func() (interface{}, error) {
		rows, err := database.DB.QueryContext(r.Context(),
			`SELECT id, organization_id, title, due_at, done, deal_id, created_at
			 FROM tasks WHERE organization_id=$1 ORDER BY due_at ASC NULLS LAST, created_at DESC`, authCtx.OrgID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var tasks []models.Task
		for rows.Next() {
			var t models.Task
			if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Title, &t.DueAt, &t.Done, &t.DealID, &t.CreatedAt); err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
		return tasks, rows.Err()
	})
}

type TaskRequest struct {
	Title  string     `json:"title"`
	DueAt  *time.Time `json:"due_at"`
	Done   bool       `json:"done"`
	DealID *int       `json:"deal_id"`
}

func dealInOrg(r *http.Request, dealID, orgID int) (bool, error) {
	var exists bool
	err := database.DB.QueryRowContext(r.Context(),
		"SELECT EXISTS(SELECT 1 FROM deals WHERE id=$1 AND organization_id=$2)",
		dealID, orgID).Scan(&exists)
	return exists, err
}

func CreateTask(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermTaskCreate)
	if !ok {
		return
	}

	var req TaskRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Title == "" {
		SendError(w, http.StatusBadRequest, "title is required")
		return
	}

	if req.DealID != nil {
		inOrg, err := dealInOrg(r, *req.DealID, authCtx.OrgID)
		if err != nil {
			SendError(w, http.StatusInternalServerError, "Error creating task")
			return
		}
		if !inOrg {
			SendError(w, http.StatusBadRequest, "deal not found in this organization")
			return
		}
	}

	var t models.Task
	err = database.DB.QueryRowContext(r.Context(),
		`INSERT INTO tasks (organization_id, title, due_at, done, deal_id) VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, organization_id, title, due_at, done, deal_id, created_at`,
		authCtx.OrgID, req.Title, req.DueAt, req.Done, req.DealID).
		Scan(&t.ID, &t.OrganizationID, &t.Title, &t.DueAt, &t.Done, &t.DealID, &t.CreatedAt)
	if err != nil {
		logger.Get().Error("error creating task", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating task")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "tasks")
	metrics.MutationCounter.WithLabelValues("task", "create").Inc()
	SendSuccess(w, http.StatusCreated, "Task created successfully", t)
}

func UpdateTask(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermTaskEdit)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	var req TaskRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Title == "" {
		SendError(w, http.StatusBadRequest, "title is required")
		return
	}

	if req.DealID != nil {
		inOrg, err := dealInOrg(r, *req.DealID, authCtx.OrgID)
		if err != nil {
			SendError(w, http.StatusInternalServerError, "Error updating task")
			return
		}
		if !inOrg {
			SendError(w, http.StatusBadRequest, "deal not found in this organization")
			return
		}
	}

	result, err := database.DB.ExecContext(r.Context(),
		`UPDATE tasks SET title=$1, due_at=$2, done=$3, deal_id=$4
		 WHERE id=$5 AND organization_id=$6`,
		req.Title, req.DueAt, req.Done, req.DealID, id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error updating task", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error updating task")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Task not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "tasks")
	metrics.MutationCounter.WithLabelValues("task", "update").Inc()
	SendSuccessNoData(w, http.StatusOK, "Task updated successfully")
}

func DeleteTask(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermTaskDelete)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	result, err := database.DB.ExecContext(r.Context(),
		"DELETE FROM tasks WHERE id=$1 AND organization_id=$2", id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error deleting task", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error deleting task")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Task not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "tasks")
	metrics.MutationCounter.WithLabelValues("task", "delete").Inc()
	SendSuccessNoData(w, http.StatusOK, "Task deleted successfully")
}
