package targets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Analytics target names.
const (
	AnalyticsHealth    = "health"
	ForecastBase       = "forecast-base"
	ForecastScenario   = "forecast-scenario"
	RiskHeatmap        = "risk-heatmap"
	VarianceWaterfall  = "variance-waterfall"
	ForecastSimulation = "forecast-simulate"
)

var branchSalesFilters = []string{"customer", "sale_date", "status", "project_name"}
var branchBillingFilters = []string{"customer", "billing_month", "status", "invoice_number"}

// DefaultContentTargets are the content-service collections the dashboard reads and writes.
var DefaultContentTargets = []Target{
	{Name: "clients", UID: "api::client.client", Filters: []string{"name", "industry", "status"}},
	{Name: "projects", UID: "api::project.project", Filters: []string{"name", "client", "status", "branch"}},
	{
		Name:     "pipeline-deals",
		UID:      "api::pipeline-deal.pipeline-deal",
		Populate: []string{"project", "deal_milestones", "risk_flags"},
		Filters:  []string{"stage", "status", "owner", "project", "expected_close_date"},
	},
	{Name: "deal-milestones", UID: "api::deal-milestone.deal-milestone", Filters: []string{"deal", "status", "due_date"}},
	{
		Name:     "forecast-snapshots",
		UID:      "api::forecast-snapshot.forecast-snapshot",
		Populate: []string{"deal"},
		Filters:  []string{"snapshot_date", "deal", "scenario"},
	},
	{
		Name:     "billings",
		UID:      "api::billing.billing",
		Populate: []string{"deal", "milestone"},
		Filters:  []string{"customer", "billing_month", "status", "deal"},
	},
	{
		Name:     "risk-flags",
		UID:      "api::risk-flag.risk-flag",
		Populate: []string{"deal"},
		Filters:  []string{"severity", "status", "deal"},
	},
	{Name: "user-profiles", UID: "api::user-profile.user-profile", Filters: []string{"email", "role", "branch"}},
	{Name: "sales", UID: "api::sale.sale", Filters: branchSalesFilters},
	{Name: "construction-sales", UID: "api::construction-sale.construction-sale", Filters: branchSalesFilters},
	{Name: "construction-billings", UID: "api::construction-billing.construction-billing", Filters: branchBillingFilters},
	{Name: "loose-furniture-sales", UID: "api::loose-furniture-sale.loose-furniture-sale", Filters: branchSalesFilters},
	{Name: "loose-furniture-billings", UID: "api::loose-furniture-billing.loose-furniture-billing", Filters: branchBillingFilters},
	{Name: "interior-design-sales", UID: "api::interior-design-sale.interior-design-sale", Filters: branchSalesFilters},
	{Name: "interior-design-billings", UID: "api::interior-design-billing.interior-design-billing", Filters: branchBillingFilters},
}

// DefaultAnalyticsTargets are the analytics-service model endpoints.
var DefaultAnalyticsTargets = []Target{
	{Name: AnalyticsHealth, Path: AnalyticsHealthPath},
	{Name: ForecastBase, Path: "forecast/base"},
	{Name: ForecastScenario, Path: "forecast/scenario"},
	{Name: RiskHeatmap, Path: "risk/heatmap"},
	{Name: VarianceWaterfall, Path: "variance/waterfall"},
	{Name: ForecastSimulation, Path: "forecast/simulate"},
}

// Default returns a registry holding DefaultContentTargets and DefaultAnalyticsTargets.
func Default(contentURL, analyticsURL string) *Registry {
	r := NewRegistry(contentURL, analyticsURL)
	for _, t := range DefaultContentTargets {
		t.Service = ServiceContent
		_ = r.Register(t)
	}
	for _, t := range DefaultAnalyticsTargets {
		t.Service = ServiceAnalytics
		_ = r.Register(t)
	}
	return r
}

// overrideFile is the YAML layout accepted by LoadOverrides.
type overrideFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadOverrides registers the targets listed in a YAML document, replacing
// defaults with the same name. Service defaults to content.
func (r *Registry) LoadOverrides(data []byte) (int, error) {
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse targets: %w", err)
	}
	for i, t := range f.Targets {
		if t.Service == "" {
			t.Service = ServiceContent
		}
		if err := r.Register(t); err != nil {
			return i, err
		}
	}
	return len(f.Targets), nil
}

// LoadOverridesFile reads path and calls LoadOverrides.
func (r *Registry) LoadOverridesFile(path string) (int, error) {
	// #nosec G304 -- operator-supplied targets path
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read targets: %w", err)
	}
	return r.LoadOverrides(data)
}
