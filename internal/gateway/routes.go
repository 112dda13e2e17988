package gateway

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/doublev/bff-gateway/internal/normalize"
	"github.com/doublev/bff-gateway/internal/query"
	"github.com/doublev/bff-gateway/internal/targets"
)

// Route binds an inbound endpoint to one backend target.
type Route struct {
	Kind   normalize.Kind
	Target targets.Target
}

// RouteInfo describes one inbound endpoint for listings.
type RouteInfo struct {
	Method  string
	Pattern string
	Kind    normalize.Kind
	Service targets.Service
	Backend string
}

// Handler builds the router.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(accessLog)
	if g.cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(recoverer)
	r.Use(corsMiddleware(g.cfg.CORS.Origins))
	r.Use(securityHeaders)
	r.Use(middleware.StripSlashes)
	r.Use(g.rateLimit)
	r.Use(g.limitBody)

	r.NotFound(g.handleNotFound)
	r.MethodNotAllowed(g.handleMethodNotAllowed)

	r.Get("/health", g.handleHealth)
	r.Get("/health/detailed", g.handleDetailedHealth)
	r.Get("/health/env", g.handleEnv)
	r.Get("/health/reconcile", g.handleReconcileStatus)
	r.Get("/stats", g.handleStats)

	r.Route("/api", func(r chi.Router) {
		r.Route("/predictive", func(r chi.Router) {
			r.Get("/health", g.handleAnalytics(targets.AnalyticsHealth, noParams))
			r.Get("/forecast/base", g.handleAnalytics(targets.ForecastBase, forecastParams))
			r.Get("/forecast/scenario/{scenarioID}", g.handleAnalytics(targets.ForecastScenario, forecastParams))
			r.Get("/risk/heatmap", g.handleAnalytics(targets.RiskHeatmap, heatmapParams))
			r.Get("/variance/waterfall", g.handleAnalytics(targets.VarianceWaterfall, waterfallParams))
			r.Post("/forecast/simulate", g.handleSimulation)
		})

		r.Get("/{resource}", g.handleContent(normalize.KindList))
		r.Post("/{resource}", g.handleContent(normalize.KindCreate))
		r.Get("/{resource}/{id}", g.handleContent(normalize.KindItem))
		r.Put("/{resource}/{id}", g.handleContent(normalize.KindUpdate))
		r.Delete("/{resource}/{id}", g.handleContent(normalize.KindDelete))
	})

	return r
}

type analyticsQuery func(values url.Values) (string, error)

func noParams(url.Values) (string, error) { return "", nil }

func forecastParams(values url.Values) (string, error) {
	p, err := query.ParseForecastParams(values)
	if err != nil {
		return "", err
	}
	return query.Analytics(p), nil
}

func heatmapParams(values url.Values) (string, error) {
	p, err := query.ParseHeatmapParams(values)
	if err != nil {
		return "", err
	}
	return query.Analytics(p), nil
}

func waterfallParams(values url.Values) (string, error) {
	p, err := query.ParseWaterfallParams(values)
	if err != nil {
		return "", err
	}
	return query.Analytics(p), nil
}

// Routes lists every backend-facing endpoint with the URL it reaches.
// Content routes are expanded once per registered resource.
func (g *Gateway) Routes() []RouteInfo {
	var out []RouteInfo
	for _, t := range g.registry.All() {
		switch t.Service {
		case targets.ServiceContent:
			collection := "/api/" + t.Name
			item := collection + "/{id}"
			out = append(out,
				RouteInfo{http.MethodGet, collection, normalize.KindList, t.Service, g.registry.URL(t)},
				RouteInfo{http.MethodPost, collection, normalize.KindCreate, t.Service, g.registry.URL(t)},
				RouteInfo{http.MethodGet, item, normalize.KindItem, t.Service, g.registry.URL(t, "{id}")},
				RouteInfo{http.MethodPut, item, normalize.KindUpdate, t.Service, g.registry.URL(t, "{id}")},
				RouteInfo{http.MethodDelete, item, normalize.KindDelete, t.Service, g.registry.URL(t, "{id}")},
			)
		case targets.ServiceAnalytics:
			if info, ok := analyticsRoutes[t.Name]; ok {
				backendURL := g.registry.URL(t)
				if t.Name == targets.ForecastScenario {
					backendURL = g.registry.URL(t, "{scenarioID}")
				}
				out = append(out, RouteInfo{info.Method, info.Pattern, info.Kind, t.Service, backendURL})
			}
		}
	}
	return out
}

var analyticsRoutes = map[string]RouteInfo{
	targets.AnalyticsHealth:    {Method: http.MethodGet, Pattern: "/api/predictive/health", Kind: normalize.KindItem},
	targets.ForecastBase:       {Method: http.MethodGet, Pattern: "/api/predictive/forecast/base", Kind: normalize.KindItem},
	targets.ForecastScenario:   {Method: http.MethodGet, Pattern: "/api/predictive/forecast/scenario/{scenarioID}", Kind: normalize.KindItem},
	targets.RiskHeatmap:        {Method: http.MethodGet, Pattern: "/api/predictive/risk/heatmap", Kind: normalize.KindItem},
	targets.VarianceWaterfall:  {Method: http.MethodGet, Pattern: "/api/predictive/variance/waterfall", Kind: normalize.KindItem},
	targets.ForecastSimulation: {Method: http.MethodPost, Pattern: "/api/predictive/forecast/simulate", Kind: normalize.KindCreate},
}
