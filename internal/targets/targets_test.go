package targets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ContentURLs(t *testing.T) {
	r := Default("http://cms:1337/", "http://analytics:8000")

	tests := []struct {
		name     string
		segments []string
		expected string
	}{
		{"clients", nil, "http://cms:1337/api/clients"},
		{"pipeline-deals", []string{"42"}, "http://cms:1337/api/pipeline-deals/42"},
		{"interior-design-billings", nil, "http://cms:1337/api/interior-design-billings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := r.Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, ServiceContent, target.Service)
			assert.Equal(t, tt.expected, r.URL(target, tt.segments...))
		})
	}
}

func TestDefault_AnalyticsURLs(t *testing.T) {
	r := Default("http://cms:1337", "http://analytics:8000")

	health, err := r.LookupService(ServiceAnalytics, AnalyticsHealth)
	require.NoError(t, err)
	assert.Equal(t, "http://analytics:8000/api/v1/health", r.URL(health))

	scenario, err := r.LookupService(ServiceAnalytics, ForecastScenario)
	require.NoError(t, err)
	assert.Equal(t, "http://analytics:8000/api/v1/predictive/forecast/scenario/optimistic", r.URL(scenario, "optimistic"))
}

func TestDefault_PopulateRelations(t *testing.T) {
	r := Default("http://cms:1337", "http://analytics:8000")

	tests := map[string][]string{
		"pipeline-deals":     {"project", "deal_milestones", "risk_flags"},
		"forecast-snapshots": {"deal"},
		"billings":           {"deal", "milestone"},
		"risk-flags":         {"deal"},
		"clients":            nil,
		"sales":              nil,
	}
	for name, populate := range tests {
		target, err := r.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, populate, target.Populate, name)
	}
}

func TestLookup_UnknownResource(t *testing.T) {
	r := Default("http://cms:1337", "http://analytics:8000")

	_, err := r.Lookup("invoices")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownResource))
	assert.Equal(t, `unknown resource "invoices"`, err.Error())

	// Analytics targets are not reachable as content resources.
	_, err = r.LookupService(ServiceContent, RiskHeatmap)
	assert.True(t, errors.Is(err, ErrUnknownResource))
}

func TestRegister_Validation(t *testing.T) {
	r := NewRegistry("http://cms:1337", "http://analytics:8000")

	assert.Error(t, r.Register(Target{Service: ServiceContent}))
	assert.Error(t, r.Register(Target{Name: "x", Service: "billing"}))

	require.NoError(t, r.Register(Target{Name: "invoices", Service: ServiceContent}))
	target, err := r.Lookup("invoices")
	require.NoError(t, err)
	assert.Equal(t, "invoices", target.Path)
}

func TestAllowsFilter(t *testing.T) {
	target := Target{Name: "billings", Filters: []string{"customer", "status"}}

	assert.True(t, target.AllowsFilter("customer"))
	assert.False(t, target.AllowsFilter("amount"))
}

func TestContentUIDs(t *testing.T) {
	r := Default("http://cms:1337", "http://analytics:8000")

	uids := r.ContentUIDs()
	assert.Len(t, uids, len(DefaultContentTargets))
	assert.Contains(t, uids, "api::billing.billing")
	assert.IsIncreasing(t, uids)
}

func TestLoadOverridesFile(t *testing.T) {
	r := Default("http://cms:1337", "http://analytics:8000")

	path := filepath.Join(t.TempDir(), "targets.yaml")
	doc := `
targets:
  - name: billings
    uid: api::billing.billing
    populate: [deal]
    filters: [customer]
  - name: payments
    uid: api::payment.payment
    filters: [status]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	n, err := r.LoadOverridesFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	billings, err := r.Lookup("billings")
	require.NoError(t, err)
	assert.Equal(t, []string{"deal"}, billings.Populate)

	payments, err := r.Lookup("payments")
	require.NoError(t, err)
	assert.Equal(t, ServiceContent, payments.Service)
	assert.Equal(t, "http://cms:1337/api/payments", r.URL(payments))
}

func TestLoadOverrides_InvalidYAML(t *testing.T) {
	r := NewRegistry("http://cms:1337", "http://analytics:8000")

	_, err := r.LoadOverrides([]byte("targets: [unterminated"))
	assert.Error(t, err)
}
