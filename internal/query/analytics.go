package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/doublev/bff-gateway/internal/config"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

// AnalyticsParams is implemented by each analytics endpoint's typed parameters.
type AnalyticsParams interface {
	Encode() string
}

// Analytics renders p in the analytics-service dialect.
func Analytics(p AnalyticsParams) string {
	if p == nil {
		return ""
	}
	return p.Encode()
}

// ForecastParams are the inputs of the base and scenario forecasts.
type ForecastParams struct {
	StartMonth *string
	EndMonth   *string
	Currency   string
}

func (p ForecastParams) Encode() string {
	var q builder
	if p.StartMonth != nil {
		q.add("start_month", *p.StartMonth)
	}
	if p.EndMonth != nil {
		q.add("end_month", *p.EndMonth)
	}
	currency := p.Currency
	if currency == "" {
		currency = config.DefaultCurrency
	}
	q.add("currency", currency)
	return q.String()
}

// HeatmapParams are the inputs of the risk heatmap.
type HeatmapParams struct {
	GroupByStage       bool
	GroupByProbability bool
	MinDealValue       *float64
}

func (p HeatmapParams) Encode() string {
	var q builder
	q.add("group_by_stage", strconv.FormatBool(p.GroupByStage))
	q.add("group_by_probability", strconv.FormatBool(p.GroupByProbability))
	if p.MinDealValue != nil && *p.MinDealValue != 0 {
		q.add("min_deal_value", strconv.FormatFloat(*p.MinDealValue, 'f', -1, 64))
	}
	return q.String()
}

// WaterfallParams are the inputs of the variance waterfall.
type WaterfallParams struct {
	CurrentSnapshotDate *string
	PriorSnapshotDate   *string
	GroupBy             string
}

func (p WaterfallParams) Encode() string {
	var q builder
	if p.CurrentSnapshotDate != nil {
		q.add("current_snapshot_date", *p.CurrentSnapshotDate)
	}
	if p.PriorSnapshotDate != nil {
		q.add("prior_snapshot_date", *p.PriorSnapshotDate)
	}
	groupBy := p.GroupBy
	if groupBy == "" {
		groupBy = config.DefaultWaterfallGroupBy
	}
	q.add("group_by", groupBy)
	return q.String()
}

// SimulationRequest is the Monte Carlo simulation body.
type SimulationRequest struct {
	DealIDs          []int     `json:"deal_ids"`
	Iterations       int       `json:"iterations"`
	ConfidenceLevels []float64 `json:"confidence_levels"`
}

const (
	minSimulationIterations = 1000
	maxSimulationIterations = 100000
)

// ParseForecastParams reads forecast parameters. Months use YYYY-MM.
func ParseForecastParams(values url.Values) (ForecastParams, error) {
	if err := onlyKeys(values, "start_month", "end_month", "currency"); err != nil {
		return ForecastParams{}, err
	}
	var p ForecastParams
	var err error
	if p.StartMonth, err = optionalTime(values, "start_month", monthLayout); err != nil {
		return ForecastParams{}, err
	}
	if p.EndMonth, err = optionalTime(values, "end_month", monthLayout); err != nil {
		return ForecastParams{}, err
	}
	p.Currency = values.Get("currency")
	return p, nil
}

// ParseHeatmapParams reads heatmap parameters.
func ParseHeatmapParams(values url.Values) (HeatmapParams, error) {
	if err := onlyKeys(values, "group_by_stage", "group_by_probability", "min_deal_value"); err != nil {
		return HeatmapParams{}, err
	}
	var p HeatmapParams
	var err error
	if p.GroupByStage, err = optionalBool(values, "group_by_stage", true); err != nil {
		return HeatmapParams{}, err
	}
	if p.GroupByProbability, err = optionalBool(values, "group_by_probability", true); err != nil {
		return HeatmapParams{}, err
	}
	if v := values.Get("min_deal_value"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return HeatmapParams{}, fmt.Errorf("%w min_deal_value=%q: must be a non-negative number", ErrInvalidParam, v)
		}
		p.MinDealValue = &f
	}
	return p, nil
}

// ParseWaterfallParams reads waterfall parameters. Dates use YYYY-MM-DD.
func ParseWaterfallParams(values url.Values) (WaterfallParams, error) {
	if err := onlyKeys(values, "current_snapshot_date", "prior_snapshot_date", "group_by"); err != nil {
		return WaterfallParams{}, err
	}
	var p WaterfallParams
	var err error
	if p.CurrentSnapshotDate, err = optionalTime(values, "current_snapshot_date", dateLayout); err != nil {
		return WaterfallParams{}, err
	}
	if p.PriorSnapshotDate, err = optionalTime(values, "prior_snapshot_date", dateLayout); err != nil {
		return WaterfallParams{}, err
	}
	p.GroupBy = values.Get("group_by")
	return p, nil
}

// ParseSimulationRequest decodes a simulation body and fills defaults.
func ParseSimulationRequest(body []byte) (SimulationRequest, error) {
	var req SimulationRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return SimulationRequest{}, fmt.Errorf("%w: simulation body: %v", ErrInvalidParam, err)
		}
	}
	if len(req.DealIDs) == 0 {
		return SimulationRequest{}, fmt.Errorf("%w: deal_ids is required", ErrInvalidParam)
	}
	if req.Iterations == 0 {
		req.Iterations = config.DefaultSimulationIterations
	}
	if req.Iterations < minSimulationIterations || req.Iterations > maxSimulationIterations {
		return SimulationRequest{}, fmt.Errorf("%w: iterations must be between %d and %d",
			ErrInvalidParam, minSimulationIterations, maxSimulationIterations)
	}
	if len(req.ConfidenceLevels) == 0 {
		req.ConfidenceLevels = append([]float64(nil), config.DefaultConfidenceLevels...)
	}
	for _, c := range req.ConfidenceLevels {
		if c <= 0 || c >= 1 {
			return SimulationRequest{}, fmt.Errorf("%w: confidence level %v outside (0, 1)", ErrInvalidParam, c)
		}
	}
	return req, nil
}

func onlyKeys(values url.Values, allowed ...string) error {
	for k := range values {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownParam, k)
		}
	}
	return nil
}

func optionalTime(values url.Values, key, layout string) (*string, error) {
	v := values.Get(key)
	if v == "" {
		return nil, nil
	}
	if _, err := time.Parse(layout, v); err != nil {
		return nil, fmt.Errorf("%w %s=%q: expected %s", ErrInvalidParam, key, v, layout)
	}
	return &v, nil
}

func optionalBool(values url.Values, key string, def bool) (bool, error) {
	v := values.Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w %s=%q: expected true or false", ErrInvalidParam, key, v)
	}
	return b, nil
}
