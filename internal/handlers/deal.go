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

// GetDeals lists the active organization's deals from the cached default
// view.
func GetDeals(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireMember(w, r)
	if !ok {
		return
	}

	sendCachedList(w, r, authCtx.OrgID, "deals", "Deals retrieved successfully", func() (interface{}, error) {
		rows, err := database.DB.QueryContext(r.Context(),
			`SELECT id, organization_id, title, amount_cents, stage, company_id, contact_id, created_at
			 FROM deals WHERE organization_id=$1 ORDER BY created_at DESC`, authCtx.OrgID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var deals []models.Deal
		for rows.Next() {
			var d models.Deal
			if err := rows.Scan(&d.ID, &d.OrganizationID, &d.Title, &d.AmountCents, &d.Stage,
				&d.CompanyID, &d.ContactID, &d.CreatedAt); err != nil {
				return nil, err
			}
			deals = append(deals, d)
		}
		return deals, rows.Err()
	})
}

type DealRequest struct {
	Title       string `json:"title"`
	AmountCents int64  `json:"amount_cents"`
	Stage       string `json:"stage"`
	CompanyID   *int   `json:"company_id"`
	ContactID   *int   `json:"contact_id"`
}

func (req *DealRequest) validate(w http.ResponseWriter) bool {
	if req.Title == "" {
		SendError(w, http.StatusBadRequest, "title is required")
		return false
	}
	if req.AmountCents < 0 {
		SendError(w, http.StatusBadRequest, "amount_cents must not be negative")
		return false
	}
	if req.Stage == "" {
		req.Stage = models.StageLead
	}
	if !models.ValidStage(req.Stage) {
		SendError(w, http.StatusBadRequest, "stage must be one of lead, qualified, proposal, won, lost")
		return false
	}
	return true
}

// dealRefsInOrg verifies referenced company/contact rows belong to the org.
func dealRefsInOrg(w http.ResponseWriter, r *http.Request, req *DealRequest, orgID int) bool {
	if req.CompanyID != nil {
		inOrg, err := companyInOrg(r, *req.CompanyID, orgID)
		if err != nil {
			SendError(w, http.StatusInternalServerError, "Error saving deal")
			return false
		}
		if !inOrg {
			SendError(w, http.StatusBadRequest, "company not found in this organization")
			return false
		}
	}
	if req.ContactID != nil {
		var exists bool
		err := database.DB.QueryRowContext(r.Context(),
			"SELECT EXISTS(SELECT 1 FROM contacts WHERE id=$1 AND organization_id=$2)",
			*req.ContactID, orgID).Scan(&exists)
		if err != nil {
			SendError(w, http.StatusInternalServerError, "Error saving deal")
			return false
		}
		if !exists {
			SendError(w, http.StatusBadRequest, "contact not found in this organization")
			return false
		}
	}
	return true
}

func CreateDeal(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermDealCreate)
	if !ok {
		return
	}

	var req DealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.validate(w) || !dealRefsInOrg(w, r, &req, authCtx.OrgID) {
		return
	}

	var d models.Deal
	err := database.DB.QueryRowContext(r.Context(),
		`INSERT INTO deals (organization_id, title, amount_cents, stage, company_id, contact_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, organization_id, title, amount_cents, stage, company_id, contact_id, created_at`,
		authCtx.OrgID, req.Title, req.AmountCents, req.Stage, req.CompanyID, req.ContactID).
		Scan(&d.ID, &d.OrganizationID, &d.Title, &d.AmountCents, &d.Stage, &d.CompanyID, &d.ContactID, &d.CreatedAt)
	if err != nil {
		logger.Get().Error("error creating deal", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating deal")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "deals")
	metrics.MutationCounter.WithLabelValues("deal", "create").Inc()
	SendSuccess(w, http.StatusCreated, "Deal created successfully", d)
}

func UpdateDeal(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermDealEdit)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	var req DealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.validate(w) || !dealRefsInOrg(w, r, &req, authCtx.OrgID) {
		return
	}

	result, err := database.DB.ExecContext(r.Context(),
		`UPDATE deals SET title=$1, amount_cents=$2, stage=$3, company_id=$4, contact_id=$5
		 WHERE id=$6 AND organization_id=$7`,
		req.Title, req.AmountCents, req.Stage, req.CompanyID, req.ContactID, id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error updating deal", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error updating deal")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Deal not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "deals")
	metrics.MutationCounter.WithLabelValues("deal", "update").Inc()
	SendSuccessNoData(w, http.StatusOK, "Deal updated successfully")
}

func DeleteDeal(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermDealDelete)
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
		"DELETE FROM deals WHERE id=$1 AND organization_id=$2", id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error deleting deal", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error deleting deal")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Deal not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "deals", "tasks")
	metrics.MutationCounter.WithLabelValues("deal", "delete").Inc()
	SendSuccessNoData(w, http.StatusOK, "Deal deleted successfully")
}

// AttachDealTag tags a deal. Both rows must belong to the active org.
func AttachDealTag(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermDealEdit)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	dealID, err := strconv.Atoi(vars["id"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}
	tagID, err := strconv.Atoi(vars["tagId"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid tag ID")
		return
	}

	// The join insert is itself org-scoped through the subselects.
	result, err := database.DB.ExecContext(r.Context(),
		`INSERT INTO deal_tags (deal_id, tag_id)
		 SELECT d.id, t.id FROM deals d, tags t
		 WHERE d.id=$1 AND d.organization_id=$3 AND t.id=$2 AND t.organization_id=$3
		 ON CONFLICT (deal_id, tag_id) DO NOTHING`,
		dealID, tagID, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error tagging deal", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error tagging deal")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Deal or tag not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "deals")
	metrics.MutationCounter.WithLabelValues("deal", "tag").Inc()
	SendSuccessNoData(w, http.StatusCreated, "Tag attached successfully")
}

// DetachDealTag removes a tag from a deal.
func DetachDealTag(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermDealEdit)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	dealID, err := strconv.Atoi(vars["id"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}
	tagID, err := strconv.Atoi(vars["tagId"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid tag ID")
		return
	}

	result, err := database.DB.ExecContext(r.Context(),
		`DELETE FROM deal_tags dt USING deals d
		 WHERE dt.deal_id=d.id AND dt.deal_id=$1 AND dt.tag_id=$2 AND d.organization_id=$3`,
		dealID, tagID, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error untagging deal", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error untagging deal")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Tag not attached to this deal")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "deals")
	metrics.MutationCounter.WithLabelValues("deal", "untag").Inc()
	SendSuccessNoData(w, http.StatusOK, "Tag detached successfully")
}
