package panel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rendis/bonsai/pkg/schema"
)

// toJSON marshals a value to indented JSON for template rendering.
func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// timeAgo returns a human-readable relative time string.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func statusBadge(ok bool) string {
	if ok {
		return "badge-success"
	}
	return "badge-error"
}

// truncate shortens s to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// writeJSON encodes v before committing the status, so a value that cannot
// be encoded becomes a 500 with an error body instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBonsaiError writes err as a structured error with a status derived
// from its code.
func writeBonsaiError(w http.ResponseWriter, err error) {
	bErr := schema.AsBonsaiError(err, schema.ErrCodeStore)
	writeJSON(w, statusFor(bErr.Code), map[string]any{"error": bErr})
}

func statusFor(code string) int {
	switch code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeInvalidEvent, schema.ErrCodeValidation:
		return http.StatusBadRequest
	case schema.ErrCodeMalformedSplit, schema.ErrCodeCycleDetected:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
