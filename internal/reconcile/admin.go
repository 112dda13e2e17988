package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/doublev/bff-gateway/internal/auth"
	"github.com/doublev/bff-gateway/internal/backend"
	"github.com/doublev/bff-gateway/internal/config"
	"github.com/doublev/bff-gateway/internal/query"
	"github.com/doublev/bff-gateway/internal/targets"
	"github.com/doublev/bff-gateway/internal/utils"
)

// Admin API collections, relative to the content service base URL.
const (
	rolesPath       = "/api/users-permissions/roles"
	permissionsPath = "/api/users-permissions/permissions"
)

// StatusError is a non-2xx reply from the admin API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// HTTPAdmin implements Admin against the content service's REST API.
type HTTPAdmin struct {
	client     *backend.Client
	baseURL    string
	credential auth.Credential
}

// NewHTTPAdmin creates an admin client. token is the content service admin API token.
func NewHTTPAdmin(client *backend.Client, baseURL, token string) *HTTPAdmin {
	return &HTTPAdmin{
		client:     client,
		baseURL:    baseURL,
		credential: auth.Bearer(token),
	}
}

// FindRole looks up a role by type.
func (a *HTTPAdmin) FindRole(ctx context.Context, roleType string) (*Role, error) {
	q := query.Content(targets.Target{Name: "roles"}, query.ContentParams{
		Filters: map[string][]string{"type": {roleType}},
	})
	body, err := a.call(ctx, "find role", http.MethodGet, query.Join(a.baseURL+rolesPath, q), nil)
	if err != nil {
		return nil, err
	}

	for _, item := range collection(body, "roles") {
		t := field(item, "type").String()
		if t != "" && t != roleType {
			continue
		}
		return &Role{
			ID:   item.Get("id").Int(),
			Type: roleType,
			Name: field(item, "name").String(),
		}, nil
	}
	return nil, nil
}

// FindPermission looks up the grant of action to a role.
func (a *HTTPAdmin) FindPermission(ctx context.Context, action string, roleID int64) (*Permission, error) {
	q := query.Content(targets.Target{Name: "permissions"}, query.ContentParams{
		Filters: map[string][]string{
			"action": {action},
			"role":   {strconv.FormatInt(roleID, 10)},
		},
	})
	body, err := a.call(ctx, "find permission", http.MethodGet, query.Join(a.baseURL+permissionsPath, q), nil)
	if err != nil {
		return nil, err
	}

	for _, item := range collection(body, "permissions") {
		if got := field(item, "action").String(); got != "" && got != action {
			continue
		}
		if got, ok := roleOf(item); ok && got != roleID {
			continue
		}
		return &Permission{
			ID:      item.Get("id").Int(),
			Action:  action,
			RoleID:  roleID,
			Enabled: field(item, "enabled").Bool(),
		}, nil
	}
	return nil, nil
}

// EnablePermission flips an existing grant to enabled.
func (a *HTTPAdmin) EnablePermission(ctx context.Context, id int64) error {
	url := a.baseURL + permissionsPath + "/" + strconv.FormatInt(id, 10)
	_, err := a.call(ctx, "enable permission", http.MethodPut, url, []byte(`{"data":{"enabled":true}}`))
	return err
}

// CreatePermission creates a new grant.
func (a *HTTPAdmin) CreatePermission(ctx context.Context, p Permission) error {
	body := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"data.action", p.Action},
		{"data.role", p.RoleID},
		{"data.enabled", p.Enabled},
	} {
		if body, err = sjson.SetBytes(body, kv.path, kv.value); err != nil {
			return fmt.Errorf("build permission body: %w", err)
		}
	}
	_, err = a.call(ctx, "create permission", http.MethodPost, a.baseURL+permissionsPath, body)
	return err
}

func (a *HTTPAdmin) call(ctx context.Context, op, method, url string, body []byte) ([]byte, error) {
	raw, err := a.client.Do(ctx, &backend.Request{
		Method:     method,
		URL:        url,
		Body:       body,
		Credential: a.credential,
	})
	if err != nil {
		return nil, err
	}
	if !raw.IsSuccess() {
		return nil, &StatusError{
			Op:         op,
			StatusCode: raw.StatusCode,
			Body:       utils.Truncate(string(raw.Body), config.MaxErrorBodyLogLen),
		}
	}
	return raw.Body, nil
}

// collection returns the items of a list reply shaped either as
// {"data": [...]}, {"<key>": [...]} or a bare array.
func collection(body []byte, key string) []gjson.Result {
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return root.Array()
	}
	for _, path := range []string{"data", key} {
		if v := root.Get(path); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

// field reads name from an item, looking inside "attributes" when the item
// uses the nested entity shape.
func field(item gjson.Result, name string) gjson.Result {
	if v := item.Get(name); v.Exists() {
		return v
	}
	return item.Get("attributes." + name)
}

// roleOf reads the role id of a permission item. The role may be a bare id,
// an object with an id, or a {"data": {"id": ...}} relation.
func roleOf(item gjson.Result) (int64, bool) {
	role := field(item, "role")
	for _, v := range []gjson.Result{role, role.Get("id"), role.Get("data.id")} {
		if v.Type != gjson.Number && v.Type != gjson.String {
			continue
		}
		if id, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}
