package mockmaster

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
)

// Path is the route the mock serves the instrument master on.
const Path = "/instruments/master"

// Call records a request made to the mock service.
type Call struct {
	Method   string
	Path     string
	Segments []string
}

// Server implements a minimal instrument master API surface.
type Server struct {
	mu    sync.Mutex
	calls []Call

	// lines is the full feed; responses carry the lines of the requested segments.
	lines []string

	failStatus int
	failBody   string
	omitResult bool
}

// New constructs a mock serving the given feed lines.
func New(lines ...string) *Server {
	s := &Server{}
	s.SetFeed(strings.Join(lines, "\n"))
	return s
}

// NewFromFile constructs a mock serving the newline separated feed in path.
func NewFromFile(path string) (*Server, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}
	s := &Server{}
	s.SetFeed(string(b))
	return s, nil
}

// SetFeed replaces the served feed.
func (s *Server) SetFeed(payload string) {
	var lines []string
	for _, l := range strings.Split(payload, "\n") {
		l = strings.TrimSuffix(l, "\r")
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = lines
}

// FailWith makes every request answer with status and body. A zero status
// restores normal behavior.
func (s *Server) FailWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failBody = body
}

// OmitResult drops the result field from successful responses.
func (s *Server) OmitResult(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitResult = omit
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleMaster)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) recordCall(r *http.Request, segments []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Segments: segments})
}

type masterRequest struct {
	ExchangeSegmentList []string `json:"exchangeSegmentList"`
}

func (s *Server) handleMaster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.recordCall(r, nil)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req masterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.recordCall(r, nil)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"type":        "error",
			"code":        "e-request-0001",
			"description": "invalid request body",
		})
		return
	}
	s.recordCall(r, req.ExchangeSegmentList)

	s.mu.Lock()
	failStatus, failBody, omit := s.failStatus, s.failBody, s.omitResult
	lines := s.lines
	s.mu.Unlock()

	if failStatus != 0 {
		w.WriteHeader(failStatus)
		_, _ = w.Write([]byte(failBody))
		return
	}

	resp := map[string]any{
		"type":        "success",
		"code":        "s-instrument-0002",
		"description": "Instrument master data fetched.",
	}
	if !omit {
		resp["result"] = selectLines(lines, req.ExchangeSegmentList)
	}
	writeJSON(w, http.StatusOK, resp)
}

func selectLines(lines []string, segments []string) string {
	want := make(map[string]bool, len(segments))
	for _, seg := range segments {
		want[seg] = true
	}
	var out []string
	for _, l := range lines {
		seg, _, _ := strings.Cut(l, "|")
		if want[seg] {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
