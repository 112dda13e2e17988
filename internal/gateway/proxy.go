package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/auth"
	"github.com/doublev/bff-gateway/internal/backend"
	"github.com/doublev/bff-gateway/internal/config"
	"github.com/doublev/bff-gateway/internal/monitoring"
	"github.com/doublev/bff-gateway/internal/normalize"
	"github.com/doublev/bff-gateway/internal/query"
	"github.com/doublev/bff-gateway/internal/targets"
	"github.com/doublev/bff-gateway/internal/utils"
)

// handleContent serves the generic content-service routes.
func (g *Gateway) handleContent(kind normalize.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := g.registry.LookupService(targets.ServiceContent, chi.URLParam(r, "resource"))
		if err != nil {
			g.reject(w, r, http.StatusNotFound, err.Error())
			return
		}

		var segments []string
		if id := pathParam(r, "id"); id != "" {
			segments = append(segments, id)
		}
		req := &backend.Request{Method: r.Method, URL: g.registry.URL(target, segments...)}

		switch kind {
		case normalize.KindList:
			params, err := query.ParseContentParams(target, r.URL.Query())
			if err != nil {
				g.reject(w, r, http.StatusBadRequest, err.Error())
				return
			}
			req.URL = query.Join(req.URL, query.Content(target, params))
		case normalize.KindItem:
			req.URL = query.Join(req.URL, query.Content(target, query.ContentParams{}))
		case normalize.KindCreate, normalize.KindUpdate:
			body, ok := g.readBody(w, r)
			if !ok {
				return
			}
			wrapped, err := normalize.WrapData(body)
			if err != nil {
				g.reject(w, r, http.StatusBadRequest, err.Error())
				return
			}
			req.Body = wrapped
		}

		g.proxy(w, r, Route{Kind: kind, Target: target}, req)
	}
}

// pathParam returns a route parameter escaped exactly once for the outbound
// path. chi matches on RawPath when the inbound path carried escapes, so the
// parameter is unescaped first in that case.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(v); err == nil {
			v = unescaped
		}
	}
	return url.PathEscape(v)
}

// handleAnalytics serves a read-only analytics route.
func (g *Gateway) handleAnalytics(name string, params analyticsQuery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := g.registry.LookupService(targets.ServiceAnalytics, name)
		if err != nil {
			g.reject(w, r, http.StatusNotFound, err.Error())
			return
		}

		var segments []string
		if id := pathParam(r, "scenarioID"); id != "" {
			segments = append(segments, id)
		}
		q, err := params(r.URL.Query())
		if err != nil {
			g.reject(w, r, http.StatusBadRequest, err.Error())
			return
		}

		req := &backend.Request{
			Method: http.MethodGet,
			URL:    query.Join(g.registry.URL(target, segments...), q),
		}
		g.proxy(w, r, Route{Kind: normalize.KindItem, Target: target}, req)
	}
}

// handleSimulation validates a Monte Carlo request and forwards it with
// defaults filled in.
func (g *Gateway) handleSimulation(w http.ResponseWriter, r *http.Request) {
	target, err := g.registry.LookupService(targets.ServiceAnalytics, targets.ForecastSimulation)
	if err != nil {
		g.reject(w, r, http.StatusNotFound, err.Error())
		return
	}

	body, ok := g.readBody(w, r)
	if !ok {
		return
	}
	sim, err := query.ParseSimulationRequest(body)
	if err != nil {
		g.reject(w, r, http.StatusBadRequest, err.Error())
		return
	}
	encoded, err := json.Marshal(sim)
	if err != nil {
		g.reject(w, r, http.StatusBadRequest, err.Error())
		return
	}

	req := &backend.Request{
		Method: http.MethodPost,
		URL:    g.registry.URL(target),
		Body:   encoded,
	}
	g.proxy(w, r, Route{Kind: normalize.KindCreate, Target: target}, req)
}

// proxy performs the single backend call for a route and writes the
// normalized response.
func (g *Gateway) proxy(w http.ResponseWriter, r *http.Request, route Route, req *backend.Request) {
	requestID := monitoring.RequestIDFromContext(r.Context())
	svc := route.Target.Service
	cred := auth.FromRequest(r)
	req.Credential = cred
	req.RequestID = requestID

	state := stateFrom(r.Context())
	state.target = route.Target.Name
	state.service = string(svc)

	start := time.Now()
	raw, err := g.clients[svc].Do(r.Context(), req)
	latency := time.Since(start)
	g.metrics.RecordBackendCall(svc, latency, err != nil)

	resp := normalize.Normalize(route.Kind, raw, err)

	switch {
	case err != nil:
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Str("target", route.Target.Name).
			Str("auth", cred.Masked()).
			Msg("backend call failed")
	case raw != nil && resp.Outcome != normalize.OutcomeSuccess && resp.Outcome != normalize.OutcomeEmptyFallback:
		log.Warn().
			Str("request_id", requestID).
			Str("target", route.Target.Name).
			Str("outcome", string(resp.Outcome)).
			Int("backend_status", raw.StatusCode).
			Str("error", resp.Message()).
			Str("backend_body", utils.Truncate(string(raw.Body), config.MaxErrorBodyLogLen)).
			Msg("backend returned an error")
	}

	w.Header().Set(HeaderProxyService, string(svc))
	event := g.newEvent(r, resp)
	event.Service = string(svc)
	event.Target = route.Target.Name
	event.RouteKind = string(route.Kind)
	event.AuthScheme = string(cred.Scheme())
	event.RequestBodySize = len(req.Body)
	event.BackendLatencyMs = latency.Milliseconds()
	if raw != nil {
		event.BackendStatus = raw.StatusCode
	}
	if err != nil {
		event.Error = err.Error()
	}
	g.finish(w, r, resp, event)
}

// reject answers without calling a backend.
func (g *Gateway) reject(w http.ResponseWriter, r *http.Request, status int, msg string) {
	resp := normalize.Error(status, msg)
	event := g.newEvent(r, resp)
	event.AuthScheme = string(auth.FromRequest(r).Scheme())
	event.Error = msg
	g.finish(w, r, resp, event)
}

func (g *Gateway) newEvent(r *http.Request, resp normalize.Response) *monitoring.RequestEvent {
	started := stateFrom(r.Context()).start
	if started.IsZero() {
		started = time.Now()
	}
	return &monitoring.RequestEvent{
		RequestID: monitoring.RequestIDFromContext(r.Context()),
		Timestamp: started.UTC(),
		Method:    r.Method,
		Path:      r.URL.Path,
		ClientIP:  clientIP(r),
		Outcome:   string(resp.Outcome),
	}
}

// finish writes resp and records it.
func (g *Gateway) finish(w http.ResponseWriter, r *http.Request, resp normalize.Response, event *monitoring.RequestEvent) {
	stateFrom(r.Context()).outcome = resp.Outcome
	resp.Write(w)

	g.metrics.RecordRequest(resp.Outcome)
	if g.tracker.Enabled() {
		event.StatusCode = resp.Status
		event.ResponseBodySize = len(resp.Body)
		event.TotalLatencyMs = time.Since(event.Timestamp).Milliseconds()
		g.tracker.RecordRequest(event)
	}
}

// readBody reads the (size-limited) request body, answering 413 or 400 itself.
func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		return body, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		g.reject(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return nil, false
	}
	g.reject(w, r, http.StatusBadRequest, "failed to read request body")
	return nil, false
}

func (g *Gateway) handleNotFound(w http.ResponseWriter, r *http.Request) {
	g.reject(w, r, http.StatusNotFound, fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path))
}

func (g *Gateway) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	g.reject(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path))
}
