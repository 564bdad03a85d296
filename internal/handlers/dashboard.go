package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"crmapi/internal/database"
	"crmapi/internal/logger"
)

type DashboardResponse struct {
	Companies     int              `json:"companies"`
	Contacts      int              `json:"contacts"`
	Deals         int              `json:"deals"`
	OpenTasks     int              `json:"open_tasks"`
	DealsByStage  map[string]int   `json:"deals_by_stage"`
	PipelineCents map[string]int64 `json:"pipeline_cents"`
}

// GetDashboard aggregates the active organization's counts and pipeline.
func GetDashboard(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireMember(w, r)
	if !ok {
		return
	}

	resp := DashboardResponse{
		DealsByStage:  make(map[string]int),
		PipelineCents: make(map[string]int64),
	}

	err := database.DB.QueryRowContext(r.Context(),
		`SELECT
		   (SELECT COUNT(*) FROM companies WHERE organization_id=$1),
		   (SELECT COUNT(*) FROM contacts WHERE organization_id=$1),
		   (SELECT COUNT(*) FROM deals WHERE organization_id=$1),
		   (SELECT COUNT(*) FROM tasks WHERE organization_id=$1 AND done=false)`,
		authCtx.OrgID).
		Scan(&resp.Companies, &resp.Contacts, &resp.Deals, &resp.OpenTasks)
	if err != nil {
		logger.Get().Error("error fetching dashboard counts", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error fetching dashboard")
		return
	}

	rows, err := database.DB.QueryContext(r.Context(),
		`SELECT stage, COUNT(*), COALESCE(SUM(amount_cents), 0)
		 FROM deals WHERE organization_id=$1 GROUP BY stage`, authCtx.OrgID)
	if err != nil {
		logger.Get().Error("error fetching deal stages", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error fetching dashboard")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var stage string
		var count int
		var cents int64
		if err := rows.Scan(&stage, &count, &cents); err != nil {
			SendError(w, http.StatusInternalServerError, "Error fetching dashboard")
			return
		}
		resp.DealsByStage[stage] = count
		resp.PipelineCents[stage] = cents
	}

	SendSuccess(w, http.StatusOK, "Dashboard retrieved successfully", resp)
}
