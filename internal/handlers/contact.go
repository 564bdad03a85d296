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

// GetContacts lists the active organization's contacts from the cached
// default view.
func GetContacts(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireMember(w, r)
	if !ok {
		return
	}

	sendCachedList(w, r, authCtx.OrgID, "contacts", "Contacts retrieved successfully", func() (interface{}, error) {
		rows, err := database.DB.QueryContext(r.Context(),
			`SELECT id, organization_id, name, email, company_id, created_at
			 FROM contacts WHERE organization_id=$1 ORDER BY created_at DESC`, authCtx.OrgID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var contacts []models.Contact
		for rows.Next() {
			var c models.Contact
			if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Email, &c.CompanyID, &c.CreatedAt); err != nil {
				return nil, err
			}
			contacts = append(contacts, c)
		}
		return contacts, rows.Err()
	})
}

type ContactRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CompanyID *int   `json:"company_id"`
}

// companyInOrg verifies a referenced company belongs to the org. Client
// ids are never trusted across the tenant boundary.
func companyInOrg(r *http.Request, companyID, orgID int) (bool, error) {
	var exists bool
	err := database.DB.QueryRowContext(r.Context(),
		"SELECT EXISTS(SELECT 1 FROM companies WHERE id=$1 AND organization_id=$2)",
		companyID, orgID).Scan(&exists)
	return exists, err
}

func CreateContact(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermContactCreate)
	if !ok {
		return
	}

	var req ContactRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	if req.CompanyID != nil {
		inOrg, err := companyInOrg(r, *req.CompanyID, authCtx.OrgID)
		if err != nil {
			SendError(w, http.StatusInternalServerError, "Error creating contact")
			return
		}
		if !inOrg {
			SendError(w, http.StatusBadRequest, "company not found in this organization")
			return
		}
	}

	var c models.Contact
	err = database.DB.QueryRowContext(r.Context(),
		`INSERT INTO contacts (organization_id, name, email, company_id) VALUES ($1, $2, $3, $4)
		 RETURNING id, organization_id, name, email, company_id, created_at`,
		authCtx.OrgID, req.Name, req.Email, req.CompanyID).
		Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Email, &c.CompanyID, &c.CreatedAt)
	if err != nil {
		logger.Get().Error("error creating contact", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating contact")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "contacts")
	metrics.MutationCounter.WithLabelValues("contact", "create").Inc()
	SendSuccess(w, http.StatusCreated, "Contact created successfully", c)
}

func UpdateContact(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermContactEdit)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	var req ContactRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	if req.CompanyID != nil {
		inOrg, err := companyInOrg(r, *req.CompanyID, authCtx.OrgID)
		if err != nil {
			SendError(w, http.StatusInternalServerError, "Error updating contact")
			return
		}
		if !inOrg {
			SendError(w, http.StatusBadRequest, "company not found in this organization")
			return
		}
	}

	result, err := database.DB.ExecContext(r.Context(),
		"UPDATE contacts SET name=$1, email=$2, company_id=$3 WHERE id=$4 AND organization_id=$5",
		req.Name, req.Email, req.CompanyID, id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error updating contact", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error updating contact")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Contact not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "contacts")
	metrics.MutationCounter.WithLabelValues("contact", "update").Inc()
	SendSuccessNoData(w, http.StatusOK, "Contact updated successfully")
}

func DeleteContact(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermContactDelete)
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
		"DELETE FROM contacts WHERE id=$1 AND organization_id=$2", id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error deleting contact", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error deleting contact")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Contact not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "contacts", "deals")
	metrics.MutationCounter.WithLabelValues("contact", "delete").Inc()
	SendSuccessNoData(w, http.StatusOK, "Contact deleted successfully")
}
