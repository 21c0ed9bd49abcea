package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/shpitdev/instrument-master/internal/app"
	"github.com/shpitdev/instrument-master/pkg/instruments"
	"github.com/shpitdev/instrument-master/pkg/masterapi"
	"github.com/shpitdev/instrument-master/pkg/pipeline/core"
	"github.com/shpitdev/instrument-master/pkg/redact"
)

const (
	msgNoSegments = "Please select at least one exchange segment."
	msgNoData     = "No valid data returned."
)

// Config configures the UI server.
type Config struct {
	APIURL          string
	DefaultSegments []instruments.Segment
	ClientOptions   masterapi.Options
	Logger          *slog.Logger

	// NewFetcher overrides how a fetcher is built for a submitted URL.
	NewFetcher func(apiURL string) (core.FeedFetcher, error)
}

// Server serves the download form and runs one fetch per submission.
type Server struct {
	cfg    Config
	logger *slog.Logger

	// upstream carries the one HTTP client and rate limiter every submission
	// shares, whatever URL it targets.
	upstream masterapi.Options

	// fetchMu serializes cycles so at most one upstream request is in flight.
	fetchMu sync.Mutex
}

// New constructs a Server.
func New(cfg Config) *Server {
	if cfg.APIURL == "" {
		cfg.APIURL = masterapi.DefaultURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		upstream: sharedOptions(cfg.ClientOptions),
	}
}

func sharedOptions(opts masterapi.Options) masterapi.Options {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	if opts.Timeout > 0 {
		clone := *hc
		clone.Timeout = opts.Timeout
		hc = &clone
	}
	limiter := opts.Limiter
	if limiter == nil && opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return masterapi.Options{HTTPClient: hc, Limiter: limiter}
}

// Handler returns the UI routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/fetch", s.handleFetch)
	mux.HandleFunc("/segments", s.handleSegments)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.render(w, http.StatusOK, s.page(s.cfg.APIURL, s.cfg.DefaultSegments))
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	apiURL := strings.TrimSpace(r.PostFormValue("api_url"))
	if apiURL == "" {
		apiURL = s.cfg.APIURL
	}
	segments, err := instruments.ParseSegments(r.PostForm["segments"])
	if err != nil {
		page := s.page(apiURL, nil)
		page.Error = err.Error()
		s.render(w, http.StatusBadRequest, page)
		return
	}
	page := s.page(apiURL, segments)
	if len(segments) == 0 {
		page.Error = msgNoSegments
		s.render(w, http.StatusBadRequest, page)
		return
	}

	fetcher, err := s.fetcher(apiURL)
	if err != nil {
		page.Error = "Error fetching data: " + redact.Secrets(err.Error())
		s.render(w, http.StatusBadRequest, page)
		return
	}

	s.fetchMu.Lock()
	res, err := app.FetchMaster(r.Context(), fetcher, segments, app.Options{Logger: s.logger})
	s.fetchMu.Unlock()

	switch {
	case errors.Is(err, app.ErrNoRecords):
		page.Warning = msgNoData
		s.render(w, http.StatusOK, page)
		return
	case err != nil:
		page.Error = "Error fetching data: " + redact.Secrets(err.Error())
		s.render(w, http.StatusBadGateway, page)
		return
	}

	w.Header().Set("Content-Type", res.Artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Artifact.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Artifact.Data)))
	w.Header().Set("X-Record-Count", strconv.Itoa(len(res.Records)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifact.Data)
}

type segmentInfo struct {
	Segment string `json:"segment"`
	Kind    string `json:"kind"`
	Columns int    `json:"columns"`
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var out []segmentInfo
	for _, seg := range instruments.Selectable() {
		kind, _ := instruments.Kind(seg)
		schema, _ := instruments.Lookup(seg)
		out = append(out, segmentInfo{Segment: string(seg), Kind: string(kind), Columns: len(schema)})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// fetcher builds a fresh fetcher for one submission.
func (s *Server) fetcher(apiURL string) (core.FeedFetcher, error) {
	if s.cfg.NewFetcher != nil {
		return s.cfg.NewFetcher(apiURL)
	}
	return masterapi.NewClient(apiURL, s.upstream)
}

func (s *Server) page(apiURL string, selected []instruments.Segment) pageData {
	sel := make(map[instruments.Segment]bool, len(selected))
	for _, seg := range selected {
		sel[seg] = true
	}
	data := pageData{Title: "Instrument Master Downloader", APIURL: apiURL}
	for _, seg := range instruments.Selectable() {
		kind, _ := instruments.Kind(seg)
		data.Segments = append(data.Segments, segmentOption{Code: string(seg), Kind: string(kind), Selected: sel[seg]})
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, data); err != nil {
		s.logger.Error("render page", "error", err)
	}
}
