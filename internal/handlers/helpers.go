package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"crmapi/internal/authz"
	"crmapi/internal/cache"
	"crmapi/internal/logger"
	"crmapi/internal/metrics"
	"crmapi/internal/middleware"
	"crmapi/internal/org"
	"crmapi/internal/rbac"
)

// Wired from main.
var (
	Guard    *authz.Guard
	Views    *cache.Views
	Resolver *org.Resolver
	OrgStore *org.Store
)

// authorize runs the guard for a mutation through its error form. On a
// routing signal or denial it writes the response and returns ok=false;
// the handler just returns.
func authorize(w http.ResponseWriter, r *http.Request, permission rbac.Permission) (authz.Context, bool) {
	userID := middleware.GetUserID(r)

	authCtx, err := Guard.Require(r.Context(), userID, permission)
	if err != nil {
		if authz.IsDenied(err) {
			metrics.AuthzDenialCounter.WithLabelValues(err.Error()).Inc()
			SendError(w, http.StatusForbidden, err.Error())
		} else {
			writeAuthzError(w, err)
		}
		return authz.Context{}, false
	}
	return authCtx, true
}

// requireMember gates read endpoints: active org resolved and membership
// present, no permission consulted.
func requireMember(w http.ResponseWriter, r *http.Request) (authz.Context, bool) {
	userID := middleware.GetUserID(r)

	decision, err := Guard.Member(r.Context(), userID)
	if err != nil {
		writeAuthzError(w, err)
		return authz.Context{}, false
	}
	if !decision.Authorized {
		metrics.AuthzDenialCounter.WithLabelValues(decision.Reason).Inc()
		SendError(w, http.StatusForbidden, decision.Reason)
		return authz.Context{}, false
	}
	return decision.Context, true
}

// writeAuthzError maps resolver routing signals and storage failures to
// HTTP. Unauthenticated and unonboarded are navigation outcomes for the
// client, not faults.
func writeAuthzError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, org.ErrUnauthenticated):
		SendError(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, org.ErrNoOrganization):
		SendError(w, http.StatusConflict, "Create an organization to continue")
	default:
		logger.Get().Error("authorization check failed", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

// parsePagination reads page/limit query params with the API defaults.
// Returns ok=false after writing the error response for bad input.
func parsePagination(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	page = 1
	limit = 10

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		parsed, err := strconv.Atoi(pageStr)
		if err != nil || parsed <= 0 {
			SendError(w, http.StatusBadRequest, "Invalid page parameter. Must be a positive integer")
			return 0, 0, false
		}
		page = parsed
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			SendError(w, http.StatusBadRequest, "Invalid limit parameter. Must be a positive integer")
			return 0, 0, false
		}
		// Cap at 100 rows per page to avoid overload.
		if parsed > 100 {
			parsed = 100
		}
		limit = parsed
	}

	return page, limit, true
}

// sendCachedList serves the org's default list view from the cache,
// falling back to fetch and repopulating on a miss.
func sendCachedList(w http.ResponseWriter, r *http.Request, orgID int, entity, message string, fetch func() (interface{}, error)) {
	if body, ok := Views.Get(r.Context(), orgID, entity); ok {
		SendSuccess(w, http.StatusOK, message, json.RawMessage(body))
		return
	}

	data, err := fetch()
	if err != nil {
		logger.Get().Error("error fetching list", zap.String("entity", entity), zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error fetching "+entity)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "Error encoding "+entity)
		return
	}
	Views.Set(r.Context(), orgID, entity, body)
	SendSuccess(w, http.StatusOK, message, json.RawMessage(body))
}
