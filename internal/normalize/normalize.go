// Package normalize turns raw backend replies into the gateway's JSON contract.
//
// Every response body is exactly one of:
//
//	{"data": <payload>}
//	{"data": []}
//	{"error": <message>}
//
// A success body that already carries "data", or an error body that already
// carries "error", is forwarded unmodified.
//
// Classification order (first match wins):
//  1. transport error                 -> TransportFailure, 500
//  2. 404 on a list route             -> EmptyFallback, 200 {"data": []}
//  3. 404 on any other route          -> falls through as a genuine error
//  4. JSON content type, parses       -> Success (2xx) or BackendError
//  5. JSON content type, no parse     -> MalformedUpstream (502 on 2xx)
//  6. other content type              -> Success on empty 2xx, MalformedUpstream
//     on non-empty 2xx, OpaqueError otherwise
package normalize

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/doublev/bff-gateway/internal/backend"
)

// Kind is the route kind; it changes how 404 and success statuses are treated.
type Kind string

const (
	KindList   Kind = "list"
	KindItem   Kind = "item"
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Outcome classifies how a request ended.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeEmptyFallback     Outcome = "empty_fallback"
	OutcomeBackendError      Outcome = "backend_error"
	OutcomeOpaqueError       Outcome = "opaque_error"
	OutcomeMalformedUpstream Outcome = "malformed_upstream"
	OutcomeTransportFailure  Outcome = "transport_failure"
	// OutcomeRejected is a gateway-local error raised before any backend call.
	OutcomeRejected Outcome = "rejected"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomeSuccess,
	OutcomeEmptyFallback,
	OutcomeBackendError,
	OutcomeOpaqueError,
	OutcomeMalformedUpstream,
	OutcomeTransportFailure,
	OutcomeRejected,
}

// Response is the uniform gateway reply.
type Response struct {
	Status  int
	Body    []byte
	Outcome Outcome
}

// Normalize classifies a backend reply for a route of the given kind.
// raw is ignored when err is non-nil.
func Normalize(kind Kind, raw *backend.RawResponse, err error) Response {
	if err != nil || raw == nil {
		if err == nil {
			err = fmt.Errorf("no response from upstream")
		}
		return Response{
			Status:  http.StatusInternalServerError,
			Body:    errorBody(err.Error()),
			Outcome: OutcomeTransportFailure,
		}
	}

	if raw.StatusCode == http.StatusNotFound && kind == KindList {
		return Response{
			Status:  http.StatusOK,
			Body:    []byte(`{"data":[]}`),
			Outcome: OutcomeEmptyFallback,
		}
	}

	body := bytes.TrimSpace(raw.Body)
	if IsJSONContentType(raw.ContentType) && len(body) > 0 {
		return normalizeJSON(kind, raw, body)
	}
	return normalizeOpaque(kind, raw, body)
}

func normalizeJSON(kind Kind, raw *backend.RawResponse, body []byte) Response {
	if !gjson.ValidBytes(body) {
		status := raw.StatusCode
		if raw.IsSuccess() {
			status = http.StatusBadGateway
		}
		return Response{
			Status:  status,
			Body:    errorBody(fmt.Sprintf("malformed JSON response from upstream (HTTP %d)", raw.StatusCode)),
			Outcome: OutcomeMalformedUpstream,
		}
	}

	parsed := gjson.ParseBytes(body)

	if raw.IsSuccess() {
		out := body
		if !hasMember(parsed, "data") {
			out = dataBody(body)
		}
		return Response{
			Status:  successStatus(kind, raw.StatusCode),
			Body:    out,
			Outcome: OutcomeSuccess,
		}
	}

	out := body
	if !hasMember(parsed, "error") {
		out = errorBody(errorMessage(parsed))
	}
	return Response{
		Status:  raw.StatusCode,
		Body:    out,
		Outcome: OutcomeBackendError,
	}
}

func normalizeOpaque(kind Kind, raw *backend.RawResponse, body []byte) Response {
	if raw.IsSuccess() {
		if len(body) == 0 {
			status := http.StatusOK
			if kind == KindCreate {
				status = http.StatusCreated
			}
			return Response{
				Status:  status,
				Body:    []byte(`{"data":null}`),
				Outcome: OutcomeSuccess,
			}
		}
		return Response{
			Status:  http.StatusBadGateway,
			Body:    errorBody(fmt.Sprintf("unexpected non-JSON response from upstream (HTTP %d)", raw.StatusCode)),
			Outcome: OutcomeMalformedUpstream,
		}
	}

	msg := string(body)
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", raw.StatusCode, raw.StatusText)
	}
	return Response{
		Status:  raw.StatusCode,
		Body:    errorBody(msg),
		Outcome: OutcomeOpaqueError,
	}
}

// successStatus keeps the backend status, except that create routes always
// answer 201 so the UI can rely on it.
func successStatus(kind Kind, status int) int {
	if kind == KindCreate {
		return http.StatusCreated
	}
	return status
}

// errorMessage extracts a human-readable message from a JSON error payload.
func errorMessage(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	if v.IsObject() {
		for _, key := range []string{"message", "detail"} {
			if m := v.Get(key); m.Type == gjson.String {
				return m.String()
			}
		}
	}
	return v.Raw
}

func hasMember(v gjson.Result, key string) bool {
	return v.IsObject() && v.Get(key).Exists()
}

// IsJSONContentType reports whether a Content-Type declares JSON.
func IsJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "application/json")
}
