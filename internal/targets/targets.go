// Package targets maps logical resource names to backend locations.
//
// DESIGN: A Target is static, read-only configuration:
//   - Service:  which backend owns the resource (content or analytics)
//   - Path:     resource path relative to the service API root
//   - Populate: relations the content service should embed, declared not inferred
//   - Filters:  filter keys callers may use; anything else is rejected
//
// A Registry is built once at startup and shared by all requests.
package targets

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Service identifies a backend.
type Service string

const (
	ServiceContent   Service = "content"
	ServiceAnalytics Service = "analytics"
)

// ErrUnknownResource is returned by Registry lookups for undeclared names.
var ErrUnknownResource = errors.New("unknown resource")

// ContentAPIPrefix is prepended to every content-service resource path.
const ContentAPIPrefix = "/api"

// AnalyticsAPIPrefix is prepended to analytics model endpoints.
const AnalyticsAPIPrefix = "/api/v1/predictive"

// AnalyticsHealthPath is the analytics liveness endpoint.
const AnalyticsHealthPath = "/api/v1/health"

// Target describes one backend resource.
type Target struct {
	Name     string   `yaml:"name"`
	Service  Service  `yaml:"service"`
	Path     string   `yaml:"path"`
	UID      string   `yaml:"uid,omitempty"`
	Populate []string `yaml:"populate,omitempty"`
	Filters  []string `yaml:"filters,omitempty"`
}

// AllowsFilter reports whether key is a declared filter for this target.
func (t Target) AllowsFilter(key string) bool {
	for _, f := range t.Filters {
		if f == key {
			return true
		}
	}
	return false
}

// Registry holds targets and the base URL of each service.
type Registry struct {
	bases   map[Service]string
	targets map[string]Target
}

// NewRegistry creates a registry for the given base URLs.
// Targets are added with Register.
func NewRegistry(contentURL, analyticsURL string) *Registry {
	return &Registry{
		bases: map[Service]string{
			ServiceContent:   strings.TrimRight(contentURL, "/"),
			ServiceAnalytics: strings.TrimRight(analyticsURL, "/"),
		},
		targets: make(map[string]Target),
	}
}

// Register adds or replaces a target. Targets must be registered before the
// registry is shared.
func (r *Registry) Register(t Target) error {
	if t.Name == "" {
		return fmt.Errorf("target name is required")
	}
	if t.Service != ServiceContent && t.Service != ServiceAnalytics {
		return fmt.Errorf("target %q: unknown service %q", t.Name, t.Service)
	}
	if t.Path == "" {
		t.Path = t.Name
	}
	// A leading slash marks a path rooted at the service base URL.
	if strings.HasPrefix(t.Path, "/") {
		t.Path = "/" + strings.Trim(t.Path, "/")
	} else {
		t.Path = strings.Trim(t.Path, "/")
	}
	r.targets[t.Name] = t
	return nil
}

// Lookup returns the target registered under name.
func (r *Registry) Lookup(name string) (Target, error) {
	t, ok := r.targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w %q", ErrUnknownResource, name)
	}
	return t, nil
}

// LookupService returns the target only if it belongs to svc.
func (r *Registry) LookupService(svc Service, name string) (Target, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return Target{}, err
	}
	if t.Service != svc {
		return Target{}, fmt.Errorf("%w %q", ErrUnknownResource, name)
	}
	return t, nil
}

// BaseURL returns the base URL for svc.
func (r *Registry) BaseURL(svc Service) string {
	return r.bases[svc]
}

// URL builds the fully-qualified URL for a target. Extra path segments
// (item id, scenario id) are appended in order.
func (r *Registry) URL(t Target, segments ...string) string {
	var b strings.Builder
	b.WriteString(r.bases[t.Service])
	if strings.HasPrefix(t.Path, "/") {
		b.WriteString(t.Path)
	} else {
		switch t.Service {
		case ServiceContent:
			b.WriteString(ContentAPIPrefix)
		case ServiceAnalytics:
			b.WriteString(AnalyticsAPIPrefix)
		}
		b.WriteByte('/')
		b.WriteString(t.Path)
	}
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(s)
	}
	return b.String()
}

// All returns every target sorted by service then name.
func (r *Registry) All() []Target {
	out := make([]Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ContentUIDs returns the content-type UIDs of all content targets, sorted.
func (r *Registry) ContentUIDs() []string {
	var uids []string
	for _, t := range r.All() {
		if t.Service == ServiceContent && t.UID != "" {
			uids = append(uids, t.UID)
		}
	}
	sort.Strings(uids)
	return uids
}
