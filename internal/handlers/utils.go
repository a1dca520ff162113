package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"media-artwork/internal/artwork"
	"media-artwork/internal/fetch"
	"media-artwork/internal/logging"
	"media-artwork/internal/render"
	"media-artwork/internal/validation"
	"media-artwork/internal/video"
)

// statusClientClosedRequest is logged when the caller went away mid-request.
const statusClientClosedRequest = 499

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, errorResponse{Error: message})
}

// writeEngineError maps an engine error onto a status code.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *validation.Error
		nf   *artwork.NotFoundError
		herr *fetch.HTTPError
		mbe  *fetch.MaxBytesError
	)
	status := http.StatusBadGateway
	switch {
	case errors.As(err, &verr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, errorResponse{Error: "invalid request", Fields: verr.Fields})
		return
	case fetch.IsAbort(err):
		status = statusClientClosedRequest
		if r.Context().Err() == nil {
			status = http.StatusServiceUnavailable
		}
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.Is(err, fetch.ErrTimeout), video.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case errors.Is(err, video.ErrZeroDimensions), errors.As(err, &mbe):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound:
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		logging.Warn("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSONError(w, err.Error(), status)
}

// queryParams reads typed values from a query string, remembering the first
// malformed one.
type queryParams struct {
	values map[string][]string
	err    error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query()}
}

func (q *queryParams) get(key string) string {
	if v := q.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (q *queryParams) has(key string) bool {
	_, ok := q.values[key]
	return ok
}

func (q *queryParams) fail(key, value string) {
	if q.err == nil {
		q.err = &validation.Error{Fields: map[string]string{key: "has an invalid value " + strconv.Quote(value)}}
	}
}

// list splits a comma separated parameter; repeated keys are concatenated.
func (q *queryParams) list(key string) []string {
	var out []string
	for _, v := range q.values[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (q *queryParams) boolean(key string, def bool) bool {
	s := q.get(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		q.fail(key, s)
		return def
	}
	return b
}

func (q *queryParams) integer(key string, def int) int {
	s := q.get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		q.fail(key, s)
		return def
	}
	return n
}

func (q *queryParams) floats(key string) []float64 {
	parts := q.list(key)
	if parts == nil {
		return nil
	}
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			q.fail(key, p)
			return nil
		}
		out = append(out, f)
	}
	return out
}

// duration accepts Go durations ("2s") and bare milliseconds ("2000").
func (q *queryParams) duration(key string, def time.Duration) time.Duration {
	s := q.get(key)
	if s == "" {
		return def
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		q.fail(key, s)
		return def
	}
	return d
}

// mime reads "mime" and "quality" into a spec, nil when both are absent.
func (q *queryParams) mime() *render.MimeSpec {
	typ, qs := q.get("mime"), q.get("quality")
	if typ == "" && qs == "" {
		return nil
	}
	spec := &render.MimeSpec{Type: typ}
	if qs != "" {
		f, err := strconv.ParseFloat(qs, 64)
		if err != nil {
			q.fail("quality", qs)
			return spec
		}
		spec.Quality = render.Quality(f)
	}
	return spec
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
