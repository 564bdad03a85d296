package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmapi/internal/authz"
	"crmapi/internal/cache"
	"crmapi/internal/database"
	"crmapi/internal/middleware"
	"crmapi/internal/org"
)

// wireTest points the package globals at a sqlmock database and an
// in-process redis, mirroring main's wiring.
func wireTest(t *testing.T) (sqlmock.Sqlmock, *miniredis.Miniredis) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	database.DB = db
	OrgStore = org.NewStore(db)
	Resolver = org.NewResolver(OrgStore)
	Guard = authz.NewGuard(Resolver, OrgStore)
	Views = cache.NewViews(rdb, time.Minute)
	return mock, mr
}

func authedRequest(method, target string, body []byte, userID int) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(r.Context(), middleware.UserIDContextKey, userID)
	return r.WithContext(ctx)
}

func expectGuard(mock sqlmock.Sqlmock, userID, orgID int, role string) {
	mock.ExpectQuery(`SELECT active_org_id FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"active_org_id"}).AddRow(orgID))

	membershipRows := sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "created_at"})
	if role != "" {
		membershipRows.AddRow(1, orgID, userID, role, time.Now())
	}
	q := mock.ExpectQuery(`WHERE user_id = \$1 AND organization_id = \$2`).
		WithArgs(userID, orgID)
	if role == "" {
		q.WillReturnError(sql.ErrNoRows)
	} else {
		q.WillReturnRows(membershipRows)
	}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestCreateCompanyDeniedForMember(t *testing.T) {
	mock, _ := wireTest(t)
	expectGuard(mock, 7, 42, "member")
	// No INSERT expectation: a denial must not reach the data store.

	w := httptest.NewRecorder()
	CreateCompany(w, authedRequest("POST", "/api/companies", []byte(`{"name":"Acme"}`), 7))

	assert.Equal(t, http.StatusForbidden, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, authz.ReasonInsufficientPermission, envelope["error"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCompanyOwnerWritesAndInvalidates(t *testing.T) {
	mock, mr := wireTest(t)

	// A stale cached view that the mutation must drop.
	require.NoError(t, mr.Set("views:42:companies", `[]`))

	expectGuard(mock, 7, 42, "owner")
	mock.ExpectQuery(`INSERT INTO companies`).
		WithArgs(42, "Acme", "acme.io").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "domain", "created_at"}).
			AddRow(1, 42, "Acme", "acme.io", time.Now()))

	w := httptest.NewRecorder()
	CreateCompany(w, authedRequest("POST", "/api/companies", []byte(`{"name":"Acme","domain":"acme.io"}`), 7))

	assert.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, true, envelope["success"])
	assert.False(t, mr.Exists("views:42:companies"), "mutation must invalidate the cached view")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCompanyRemovedMembershipDenied(t *testing.T) {
	mock, _ := wireTest(t)
	// Stored pointer to org 42 survives, but the membership is gone.
	expectGuard(mock, 7, 42, "")

	w := httptest.NewRecorder()
	CreateCompany(w, authedRequest("POST", "/api/companies", []byte(`{"name":"Acme"}`), 7))

	assert.Equal(t, http.StatusForbidden, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, authz.ReasonNotAMember, envelope["error"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDealUnonboardedRoutesToOrgCreation(t *testing.T) {
	mock, _ := wireTest(t)
	// No pointer and no memberships at all.
	mock.ExpectQuery(`SELECT active_org_id FROM users WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"active_org_id"}).AddRow(nil))
	mock.ExpectQuery(`ORDER BY created_at ASC, id ASC`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "created_at"}))

	w := httptest.NewRecorder()
	r := authedRequest("DELETE", "/api/deals/1", nil, 7)
	DeleteDeal(w, r)

	assert.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, false, envelope["success"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDealsServedFromCache(t *testing.T) {
	mock, mr := wireTest(t)
	require.NoError(t, mr.Set("views:42:deals", `[{"id":9}]`))
	expectGuard(mock, 7, 42, "member")
	// No deals query: the snapshot answers.

	w := httptest.NewRecorder()
	GetDeals(w, authedRequest("GET", "/api/deals", nil, 7))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":9`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwitchOrganizationRequiresMembership(t *testing.T) {
	mock, _ := wireTest(t)
	mock.ExpectQuery(`WHERE user_id = \$1 AND organization_id = \$2`).
		WithArgs(7, 99).
		WillReturnError(sql.ErrNoRows)

	w := httptest.NewRecorder()
	SwitchOrganization(w, authedRequest("POST", "/api/orgs/switch", []byte(`{"organization_id":99}`), 7))

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMeUnonboarded(t *testing.T) {
	mock, _ := wireTest(t)
	mock.ExpectQuery(`SELECT id, name, email, active_org_id, created_at FROM users WHERE id=\$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "active_org_id", "created_at"}).
			AddRow(7, "Ada", "ada@example.com", nil, time.Now()))
	mock.ExpectQuery(`SELECT active_org_id FROM users WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"active_org_id"}).AddRow(nil))
	mock.ExpectQuery(`ORDER BY created_at ASC, id ASC`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "created_at"}))

	w := httptest.NewRecorder()
	GetMe(w, authedRequest("GET", "/api/me", nil, 7))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"onboarding_required":true`)
	require.NoError(t, mock.ExpectationsWereMet())
}
