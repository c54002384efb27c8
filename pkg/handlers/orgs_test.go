package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizhub-backend/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestOrganizationsLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	admin := seedProfile(t, db, models.Profile{ID: "admin", Role: models.RoleAdmin})
	user := seedProfile(t, db, models.Profile{ID: "u1", Role: models.RoleUser})
	h := NewOrgsHandler(testConfig(), db, nil)

	rec := httptest.NewRecorder()
	h.CreateOrganization(rec, asCaller(jsonRequest(http.MethodPost, "/api/orgs", `{"name":"Acme Corp"}`), admin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	org := decodeJSON(t, rec)["organization"].(map[string]interface{})
	assert.Equal(t, "acme-corp", org["slug"])
	orgID := org["id"].(string)

	rec = httptest.NewRecorder()
	h.CreateOrganization(rec, asCaller(jsonRequest(http.MethodPost, "/api/orgs", `{"name":"ACME corp!"}`), admin))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// not yet a member
	rec = httptest.NewRecorder()
	h.GetOrganization(rec, withURLParam(asCaller(httptest.NewRequest(http.MethodGet, "/api/orgs/"+orgID, nil), user), "id", orgID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.AddMember(rec, withURLParam(asCaller(jsonRequest(http.MethodPost, "/", `{"user_id":"u1"}`), admin), "id", orgID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	membership := decodeJSON(t, rec)["membership"].(map[string]interface{})
	assert.Equal(t, true, membership["is_primary"], "first membership becomes primary")

	p, err := db.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, orgID, p.OrgID)

	rec = httptest.NewRecorder()
	h.GetOrganization(rec, withURLParam(asCaller(httptest.NewRequest(http.MethodGet, "/", nil), user), "id", orgID))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.AddMember(rec, withURLParam(asCaller(jsonRequest(http.MethodPost, "/", `{"user_id":"u1"}`), admin), "id", orgID))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.AddMember(rec, withURLParam(asCaller(jsonRequest(http.MethodPost, "/", `{"user_id":"ghost"}`), admin), "id", orgID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMyOrganizationsETag(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t)
	user := seedProfile(t, db, models.Profile{ID: "u1", Role: models.RoleUser})
	require.NoError(t, db.CreateOrganization(ctx, &models.Organization{ID: "o1", Name: "Acme"}))
	require.NoError(t, db.CreateOrganization(ctx, &models.Organization{ID: "o2", Name: "Globex"}))
	require.NoError(t, db.AddUserOrganization(ctx, &models.UserOrganization{UserID: "u1", OrgID: "o1"}))
	require.NoError(t, db.AddUserOrganization(ctx, &models.UserOrganization{UserID: "u1", OrgID: "o2"}))
	h := NewOrgsHandler(testConfig(), db, nil)

	rec := httptest.NewRecorder()
	h.ListMyOrganizations(rec, asCaller(httptest.NewRequest(http.MethodGet, "/api/orgs", nil), user))
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	orgs := decodeJSON(t, rec)["organizations"].([]interface{})
	require.Len(t, orgs, 2)
	assert.Equal(t, "o1", orgs[0].(map[string]interface{})["org_id"])

	req := asCaller(httptest.NewRequest(http.MethodGet, "/api/orgs", nil), user)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ListMyOrganizations(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	// switching the primary org changes the tag
	rec = httptest.NewRecorder()
	h.SetPrimaryOrganization(rec, asCaller(jsonRequest(http.MethodPut, "/api/orgs/primary", `{"org_id":"o2"}`), user))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = asCaller(httptest.NewRequest(http.MethodGet, "/api/orgs", nil), user)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ListMyOrganizations(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	orgs = decodeJSON(t, rec)["organizations"].([]interface{})
	assert.Equal(t, "o2", orgs[0].(map[string]interface{})["org_id"])

	rec = httptest.NewRecorder()
	h.SetPrimaryOrganization(rec, asCaller(jsonRequest(http.MethodPut, "/api/orgs/primary", `{"org_id":"o3"}`), user))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
