package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore breaks every list call.
type failingStore struct {
	database.DatabaseInterface
}

func (failingStore) ListProfiles(context.Context, models.ProfileFilter) ([]models.Profile, error) {
	return nil, errors.New("connection reset")
}

func seedClients(t *testing.T) *database.BoltDatabase {
	t.Helper()
	ctx := context.Background()
	db := newTestStore(t)
	require.NoError(t, db.CreateOrganization(ctx, &models.Organization{ID: "o1", Name: "Acme", Slug: "acme"}))
	require.NoError(t, db.CreateOrganization(ctx, &models.Organization{ID: "o2", Name: "Globex", Slug: "globex"}))

	seedProfile(t, db, models.Profile{ID: "admin", Email: "admin@example.com", Role: models.RoleAdmin, OrgID: "o1"})
	seedProfile(t, db, models.Profile{ID: "mgr", Email: "mgr@example.com", Role: models.RoleManager, OrgID: "o1"})
	seedProfile(t, db, models.Profile{ID: "c1", Email: "c1@example.com", Role: models.RoleClient, OrgID: "o1"})
	seedProfile(t, db, models.Profile{ID: "c2", Email: "c2@example.com", Role: models.RoleClientNoAccess, OrgID: "o2"})
	seedProfile(t, db, models.Profile{ID: "c3", Email: "c3@example.com", Role: models.RoleClient})
	seedProfile(t, db, models.Profile{ID: "c4", Email: "c4@example.com", Role: models.RoleClient, OrgID: "gone"})
	return db
}

func TestListClientsRequiresProfile(t *testing.T) {
	h := NewUsersHandler(testConfig(), seedClients(t), nil)

	rec := httptest.NewRecorder()
	h.ListClients(rec, httptest.NewRequest(http.MethodGet, "/api/users/clients", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListClientsGroupsByOrgName(t *testing.T) {
	db := seedClients(t)
	admin, err := db.GetProfile(context.Background(), "admin")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	NewUsersHandler(testConfig(), db, nil).ListClients(rec, asCaller(httptest.NewRequest(http.MethodGet, "/api/users/clients", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["clients"], 4)

	grouped := map[string][]string{}
	for name, members := range body["clientsByOrg"].(map[string]interface{}) {
		for _, m := range members.([]interface{}) {
			grouped[name] = append(grouped[name], m.(map[string]interface{})["id"].(string))
		}
	}
	want := map[string][]string{
		"Acme":       {"c1"},
		"Globex":     {"c2"},
		"Unassigned": {"c3", "c4"},
	}
	if diff := cmp.Diff(want, grouped); diff != "" {
		t.Errorf("clientsByOrg mismatch (-want +got):\n%s", diff)
	}
}

func TestListClientsStoreFailure(t *testing.T) {
	admin := &models.Profile{ID: "admin", Role: models.RoleAdmin}
	rec := httptest.NewRecorder()
	NewUsersHandler(testConfig(), failingStore{}, nil).ListClients(rec, asCaller(httptest.NewRequest(http.MethodGet, "/api/users/clients", nil), admin))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to load clients", decodeJSON(t, rec)["error"])
}

func TestListUsersScopesToOrg(t *testing.T) {
	db := seedClients(t)
	h := NewUsersHandler(testConfig(), db, nil)

	mgr := &models.Profile{ID: "mgr", Role: models.RoleManager, OrgID: "o1"}
	rec := httptest.NewRecorder()
	h.ListUsers(rec, asCaller(httptest.NewRequest(http.MethodGet, "/api/users?org_id=o2", nil), mgr))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeJSON(t, rec)["count"], "managers stay in their own org")

	admin := &models.Profile{ID: "admin", Role: models.RoleAdmin, OrgID: "o1"}
	rec = httptest.NewRecorder()
	h.ListUsers(rec, asCaller(httptest.NewRequest(http.MethodGet, "/api/users?org_id=o2", nil), admin))
	assert.EqualValues(t, 1, decodeJSON(t, rec)["count"])
}

func TestGroupClientsByOrgEmpty(t *testing.T) {
	assert.Empty(t, GroupClientsByOrg(nil, nil))
}
