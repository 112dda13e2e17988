package normalize

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/doublev/bff-gateway/internal/utils"
)

// ErrInvalidBody is returned by WrapData for bodies that are not JSON.
var ErrInvalidBody = errors.New("request body must be valid JSON")

// Error builds a gateway-local error response.
func Error(status int, msg string) Response {
	return Response{Status: status, Body: errorBody(msg), Outcome: OutcomeRejected}
}

// Data builds a success response around an already-encoded JSON payload.
func Data(status int, payload []byte) Response {
	return Response{Status: status, Body: dataBody(payload), Outcome: OutcomeSuccess}
}

// Write sends the response as JSON with caching disabled.
func (r Response) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// Message returns the error message of an error envelope, or "" for success bodies.
func (r Response) Message() string {
	e := gjson.GetBytes(r.Body, "error")
	if !e.Exists() {
		return ""
	}
	if e.Type == gjson.String {
		return e.String()
	}
	if m := e.Get("message"); m.Exists() {
		return m.String()
	}
	return e.Raw
}

// WrapData returns body inside a {"data": ...} envelope unless it already is
// an object with a data member. The content service only accepts writes in
// that envelope.
func WrapData(body []byte) ([]byte, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil, ErrInvalidBody
	}
	if hasMember(gjson.ParseBytes(body), "data") {
		return body, nil
	}
	return dataBody(body), nil
}

func dataBody(payload []byte) []byte {
	out, err := sjson.SetRawBytes([]byte(`{}`), "data", payload)
	if err != nil {
		return []byte(`{"data":null}`)
	}
	return out
}

// errorBody quotes msg with encoding/json so invalid UTF-8 from an upstream
// body is replaced rather than copied into the envelope.
func errorBody(msg string) []byte {
	quoted := utils.QuoteJSON(msg)
	out, err := sjson.SetRawBytes([]byte(`{}`), "error", quoted)
	if err != nil {
		return append(append([]byte(`{"error":`), quoted...), '}')
	}
	return out
}
