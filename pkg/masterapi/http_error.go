package masterapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shpitdev/instrument-master/pkg/redact"
)

// responseEnvelope is the JSON shape the market-data API wraps every reply in.
// Only the fields used here are decoded.
type responseEnvelope struct {
	Type        string  `json:"type"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Result      *string `json:"result"`
}

// HTTPError is a sanitized summary of a non-2xx API response.
//
// Raw response bodies are never included; only a redacted, truncated snippet.
type HTTPError struct {
	Op          string
	StatusCode  int
	Status      string
	Code        string
	Description string

	// Snippet is a redacted, truncated hint for non-JSON responses.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "market data http error"
	}
	parts := []string{
		fmt.Sprintf("market data api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Code) != "" {
		parts = append(parts, "code="+strings.TrimSpace(e.Code))
	}
	if strings.TrimSpace(e.Description) != "" {
		parts = append(parts, "description="+redact.Secrets(strings.TrimSpace(e.Description)))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// snippetLimit caps how much of a non-envelope body is kept on an HTTPError.
const snippetLimit = 256

// newHTTPError prefers the API's own envelope. Code and description are
// reported as sent; an envelope carrying only a type (e.g. "error") keeps the
// type as its description. Anything else is reduced to a redacted, single-line
// snippet.
func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	var env responseEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		h.Code = strings.TrimSpace(env.Code)
		h.Description = strings.TrimSpace(env.Description)
		if h.Description == "" && h.Code == "" {
			h.Description = strings.TrimSpace(env.Type)
		}
		if h.Code != "" || h.Description != "" {
			return h
		}
	}

	snippet := body
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	h.Snippet = strings.Join(strings.Fields(redact.Secrets(string(snippet))), " ")
	if h.Snippet != "" && len(body) > snippetLimit {
		h.Snippet += "..."
	}
	return h
}
