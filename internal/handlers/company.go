package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"crmapi/internal/database"
	"crmapi/internal/logger"
	"crmapi/internal/metrics"
	"crmapi/internal/models"
	"crmapi/internal/rbac"
	"crmapi/internal/response"
)

// GetCompanies lists the active organization's companies. The default
// view is served from the cache; explicit pagination bypasses it.
func GetCompanies(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireMember(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("page") == "" && r.URL.Query().Get("limit") == "" {
		sendCachedList(w, r, authCtx.OrgID, "companies", "Companies retrieved successfully", func() (interface{}, error) {
			return fetchCompanies(r, authCtx.OrgID, 0, 0)
		})
		return
	}

	page, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	var total int
	err := database.DB.QueryRowContext(r.Context(),
		"SELECT COUNT(*) FROM companies WHERE organization_id=$1", authCtx.OrgID).Scan(&total)
	if err != nil {
		logger.Get().Error("error counting companies", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error fetching companies")
		return
	}

	companies, err := fetchCompanies(r, authCtx.OrgID, limit, (page-1)*limit)
	if err != nil {
		logger.Get().Error("error fetching companies", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error fetching companies")
		return
	}

	meta := response.PaginationMeta{
		Page:       page,
		PerPage:    limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
	response.SendPaginatedSuccess(w, http.StatusOK, "Companies retrieved successfully", companies, meta)
}

func fetchCompanies(r *http.Request, orgID, limit, offset int) ([]models.Company, error) {
	query := `SELECT id, organization_id, name, domain, created_at
		 FROM companies WHERE organization_id=$1 ORDER BY created_at DESC`
	args := []interface{}{orgID}
	if limit > 0 {
		query += " LIMIT $2 OFFSET $3"
		args = append(args, limit, offset)
	}

	rows, err := database.DB.QueryContext(r.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Domain, &c.CreatedAt); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

type CompanyRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

func CreateCompany(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermCompanyCreate)
	if !ok {
		return
	}

	var req CompanyRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	var c models.Company
	err = database.DB.QueryRowContext(r.Context(),
		`INSERT INTO companies (organization_id, name, domain) VALUES ($1, $2, $3)
		 RETURNING id, organization_id, name, domain, created_at`,
		authCtx.OrgID, req.Name, req.Domain).
		Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Domain, &c.CreatedAt)
	if err != nil {
		logger.Get().Error("error creating company", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating company")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "companies")
	metrics.MutationCounter.WithLabelValues("company", "create").Inc()
	SendSuccess(w, http.StatusCreated, "Company created successfully", c)
}

func UpdateCompany(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermCompanyEdit)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	var req CompanyRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Name == "" {
		SendError(w, http.StatusBadRequest, "name is required")
		return
	}

	result, err := database.DB.ExecContext(r.Context(),
		"UPDATE companies SET name=$1, domain=$2 WHERE id=$3 AND organization_id=$4",
		req.Name, req.Domain, id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error updating company", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error updating company")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Company not found")
		return
	}

	Views.Invalidate(r.Context(), authCtx.OrgID, "companies")
	metrics.MutationCounter.WithLabelValues("company", "update").Inc()
	SendSuccessNoData(w, http.StatusOK, "Company updated successfully")
}

func DeleteCompany(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authorize(w, r, rbac.PermCompanyDelete)
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
		"DELETE FROM companies WHERE id=$1 AND organization_id=$2", id, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error deleting company", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error deleting company")
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		SendError(w, http.StatusNotFound, "Company not found")
		return
	}

	// Contacts and deals keep rows but lose the reference via FK SET NULL.
	Views.Invalidate(r.Context(), authCtx.OrgID, "companies", "contacts", "deals")
	metrics.MutationCounter.WithLabelValues("company", "delete").Inc()
	SendSuccessNoData(w, http.StatusOK, "Company deleted successfully")
}
