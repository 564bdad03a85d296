package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"crmapi/internal/database"
	"crmapi/internal/logger"
	"crmapi/internal/metrics"
	"crmapi/internal/models"
	"crmapi/internal/rbac"
)

func GetTags(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireMember(w, r)
	if !ok {
		return
	}

	sendCachedList(w, r, authCtx.OrgID, "tags", "Tags retrieved successfully", func() (interface{}, error) {
		rows, err := database.DB.QueryContext(r.Context(),
			`SELECT id, organization_id, name, color, created_at
			 FROM tags WHERE organization_id=$1 ORDER BY name ASC`, authCtx.OrgID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var tags []models.Tag
		for rows.Next() {
			var t models.Tag
			if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
				return nil, err
			}
			tags = append(tags, t)
		}
		return tags, rows.Err()
	})
}

type TagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func CreateTag(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermTagCreate)
	if !ok {
		return
	}

	var req TagRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	var t models.Tag
	err = database.DB.QueryRowContext(r.Context(),
		`INSERT INTO tags (organization_id, name, color) VALUES ($1, $2, $3)
		 RETURNING id, organization_id, name, color, created_at`,
		authCtx.OrgID, req.Name, req.Color).
		Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.CreatedAt)
	if err != nil {
		logger.Get().Error("error creating tag", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating tag")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "tags")
	metrics.MutationCounter.WithLabelValues("tag", "create").Inc()
	SendSuccess(w, http.StatusCreated, "Tag created successfully", t)
}

func UpdateTag(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermTagEdit)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	var req TagRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	result, err := database.DB.ExecContext(r.Context(),
		"UPDATE tags SET name=$1, color=$2 WHERE id=$3 AND organization_id=$4",
		req.Name, req.Color, id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error updating tag", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error updating tag")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Tag not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "tags", "deals")
	metrics.MutationCounter.WithLabelValues("tag", "update").Inc()
	SendSuccessNoData(w, http.StatusOK, "Tag updated successfully")
}

func DeleteTag(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermTagDelete)
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
		"DELETE FROM tags WHERE id=$1 AND organization_id=$2", id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error deleting tag", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error deleting tag")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Tag not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "tags", "deals")
	metrics.MutationCounter.WithLabelValues("tag", "delete").Inc()
	SendSuccessNoData(w, http.StatusOK, "Tag deleted successfully")
}
