package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/doublev/bff-gateway/internal/backend"
)

// fakeContentAdmin serves the users-permissions collections.
type fakeContentAdmin struct {
	mu          sync.Mutex
	token       string
	roles       []Role
	permissions []Permission
	creates     int
	updates     int
	rawQueries  []string
	// ignoreRoleFilter returns grants of every role, as an admin API that
	// drops unknown filters would.
	ignoreRoleFilter bool
}

func (f *fakeContentAdmin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"status":401,"message":"Missing or invalid credentials"}}`))
		return
	}
	f.rawQueries = append(f.rawQueries, r.URL.RawQuery)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == rolesPath:
		want := r.URL.Query().Get("filters[type]")
		var out []map[string]any
		for _, role := range f.roles {
			if role.Type == want {
				out = append(out, map[string]any{"id": role.ID, "attributes": map[string]any{"type": role.Type, "name": role.Name}})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": out})

	case r.Method == http.MethodGet && r.URL.Path == permissionsPath:
		action := r.URL.Query().Get("filters[action]")
		role, _ := strconv.ParseInt(r.URL.Query().Get("filters[role]"), 10, 64)
		out := []Permission{}
		for _, p := range f.permissions {
			if p.Action == action && (f.ignoreRoleFilter || p.RoleID == role) {
				out = append(out, p)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": out})

	case r.Method == http.MethodPost && r.URL.Path == permissionsPath:
		var body struct {
			Data Permission `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body.Data.ID = int64(len(f.permissions) + 100)
		f.permissions = append(f.permissions, body.Data)
		f.creates++
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": body.Data})

	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, permissionsPath+"/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, permissionsPath+"/"), 10, 64)
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"data":{"enabled":true}}` {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for i := range f.permissions {
			if f.permissions[i].ID == id {
				f.permissions[i].Enabled = true
				f.updates++
				_ = json.NewEncoder(w).Encode(map[string]any{"data": f.permissions[i]})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, `{"error":{"status":404,"message":"%s %s"}}`, r.Method, r.URL.Path)
	}
}

func TestHTTPAdmin_ReconcileTwiceEqualsOnce(t *testing.T) {
	fake := &fakeContentAdmin{
		token: "admin-token",
		roles: []Role{{ID: 1, Type: "public", Name: "Public"}, {ID: 2, Type: "authenticated", Name: "Authenticated"}},
		permissions: []Permission{
			{ID: 1, Action: "api::sale.sale.find", RoleID: 1, Enabled: false},
		},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	admin := NewHTTPAdmin(backend.NewClient(), srv.URL, "admin-token")
	r := New(admin, []string{"api::sale.sale"})
	r.sleep = noSleep(nil)

	first := r.Run(context.Background())
	created, enabled, _, failed := first.Totals()
	assert.Equal(t, 9, created)
	assert.Equal(t, 1, enabled)
	assert.Equal(t, 0, failed)

	second := r.Run(context.Background())
	created, enabled, unchanged, failed := second.Totals()
	assert.Equal(t, 0, created)
	assert.Equal(t, 0, enabled)
	assert.Equal(t, 10, unchanged)
	assert.Equal(t, 0, failed)

	assert.Len(t, fake.permissions, 10)
	assert.Equal(t, 9, fake.creates)
	assert.Equal(t, 1, fake.updates)
	for _, p := range fake.permissions {
		assert.True(t, p.Enabled, p.Action)
	}
}

func TestHTTPAdmin_UsesContentQueryDialect(t *testing.T) {
	fake := &fakeContentAdmin{token: "t", roles: []Role{{ID: 7, Type: "public"}}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	admin := NewHTTPAdmin(backend.NewClient(), srv.URL, "t")

	role, err := admin.FindRole(context.Background(), "public")
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, int64(7), role.ID)

	p, err := admin.FindPermission(context.Background(), "api::sale.sale.find", 7)
	require.NoError(t, err)
	assert.Nil(t, p)

	assert.Equal(t, []string{
		"filters[type]=public",
		"filters[action]=api%3A%3Asale.sale.find&filters[role]=7",
	}, fake.rawQueries)
}

func TestHTTPAdmin_FindPermissionChecksRole(t *testing.T) {
	fake := &fakeContentAdmin{
		token:            "t",
		ignoreRoleFilter: true,
		permissions:      []Permission{{ID: 9, Action: "api::client.client.find", RoleID: 2, Enabled: true}},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	admin := NewHTTPAdmin(backend.NewClient(), srv.URL, "t")

	p, err := admin.FindPermission(context.Background(), "api::client.client.find", 1)
	require.NoError(t, err)
	assert.Nil(t, p, "another role's grant must not count")

	p, err = admin.FindPermission(context.Background(), "api::client.client.find", 2)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(9), p.ID)
	assert.Equal(t, int64(2), p.RoleID)
}

func TestHTTPAdmin_ReconcileWithUnfilteredPermissions(t *testing.T) {
	fake := &fakeContentAdmin{
		token:            "t",
		ignoreRoleFilter: true,
		roles:            []Role{{ID: 1, Type: "public"}, {ID: 2, Type: "authenticated"}},
		permissions:      []Permission{{ID: 9, Action: "api::client.client.find", RoleID: 2, Enabled: true}},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	r := New(NewHTTPAdmin(backend.NewClient(), srv.URL, "t"), []string{"api::client.client"})
	report := r.Run(context.Background())

	created, _, unchanged, failed := report.Totals()
	assert.Equal(t, 9, created)
	assert.Equal(t, 1, unchanged)
	assert.Zero(t, failed)

	granted := map[int64]bool{}
	for _, p := range fake.permissions {
		if p.Action == "api::client.client.find" {
			granted[p.RoleID] = p.Enabled
		}
	}
	assert.Equal(t, map[int64]bool{1: true, 2: true}, granted)
}

func TestRoleOf_Shapes(t *testing.T) {
	tests := []struct {
		item string
		id   int64
		ok   bool
	}{
		{`{"role":3}`, 3, true},
		{`{"role":"3"}`, 3, true},
		{`{"role":{"id":4,"type":"public"}}`, 4, true},
		{`{"role":{"data":{"id":5}}}`, 5, true},
		{`{"attributes":{"role":{"data":{"id":6}}}}`, 6, true},
		{`{"action":"x"}`, 0, false},
		{`{"role":null}`, 0, false},
	}
	for _, tt := range tests {
		id, ok := roleOf(gjson.Parse(tt.item))
		assert.Equal(t, tt.ok, ok, tt.item)
		assert.Equal(t, tt.id, id, tt.item)
	}
}

func TestHTTPAdmin_MissingRole(t *testing.T) {
	fake := &fakeContentAdmin{token: "t"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	role, err := NewHTTPAdmin(backend.NewClient(), srv.URL, "t").FindRole(context.Background(), "authenticated")

	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestHTTPAdmin_StatusError(t *testing.T) {
	fake := &fakeContentAdmin{token: "right"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := NewHTTPAdmin(backend.NewClient(), srv.URL, "wrong").FindRole(context.Background(), "public")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "Missing or invalid credentials")
	assert.False(t, retryable(err))
}

func TestCollection_Shapes(t *testing.T) {
	assert.Len(t, collection([]byte(`[{"id":1}]`), "roles"), 1)
	assert.Len(t, collection([]byte(`{"data":[{"id":1},{"id":2}]}`), "roles"), 2)
	assert.Len(t, collection([]byte(`{"roles":[{"id":1}]}`), "roles"), 1)
	assert.Empty(t, collection([]byte(`{"data":null}`), "roles"))
}
