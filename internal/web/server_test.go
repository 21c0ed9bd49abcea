package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/instrument-master/internal/mockmaster"
	"github.com/shpitdev/instrument-master/internal/web"
	"github.com/shpitdev/instrument-master/pkg/export"
	"github.com/shpitdev/instrument-master/pkg/instruments"
	"github.com/shpitdev/instrument-master/pkg/masterapi"
	"github.com/shpitdev/instrument-master/pkg/pipeline/core"
)

const relianceLine = "NSECM|101|EQ|RELIANCE|Reliance Industries|EQ|RELIANCE-EQ|5001|3000|2500|1|0.05|1|1|RELIANCE|INE002A01018|1|100|Reliance|N|N|N"

type fixture struct {
	mock   *mockmaster.Server
	apiURL string
	ui     *httptest.Server
}

func newFixture(t *testing.T, lines ...string) fixture {
	t.Helper()
	mock := mockmaster.New(lines...)
	upstream := httptest.NewServer(mock.Handler())
	t.Cleanup(upstream.Close)

	apiURL := upstream.URL + mockmaster.Path
	srv := web.New(web.Config{
		APIURL:          apiURL,
		DefaultSegments: []instruments.Segment{instruments.NSECM, instruments.NSEFO},
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ui := httptest.NewServer(srv.Handler())
	t.Cleanup(ui.Close)
	return fixture{mock: mock, apiURL: apiURL, ui: ui}
}

func (f fixture) submit(t *testing.T, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := http.PostForm(f.ui.URL+"/fetch", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestIndex(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ui.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := string(b)
	assert.Contains(t, body, `value="`+f.apiURL+`"`)
	assert.Contains(t, body, `<option value="NSECM" selected>`)
	assert.Contains(t, body, `<option value="NSEFO" selected>`)
	assert.Contains(t, body, `<option value="MCXFO">`)
}

func TestFetch_DownloadsCSV(t *testing.T) {
	f := newFixture(t, relianceLine)
	resp, body := f.submit(t, url.Values{"api_url": {f.apiURL}, "segments": {"NSECM"}})

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="instruments_master.csv"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "1", resp.Header.Get("X-Record-Count"))

	recs, err := export.ReadRecords(bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	isin, _ := recs[0].Get("ISIN")
	assert.Equal(t, "INE002A01018", isin)
}

func TestFetch_NoSegments(t *testing.T) {
	f := newFixture(t, relianceLine)
	resp, body := f.submit(t, url.Values{"api_url": {f.apiURL}})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please select at least one exchange segment.")
	assert.Empty(t, f.mock.Calls())
}

func TestFetch_UnknownSegment(t *testing.T) {
	f := newFixture(t, relianceLine)
	resp, _ := f.submit(t, url.Values{"segments": {"NYSE"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, f.mock.Calls())
}

func TestFetch_NoValidData(t *testing.T) {
	f := newFixture(t, relianceLine)
	resp, body := f.submit(t, url.Values{"segments": {"NSEFO"}})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, body, "No valid data returned.")
	assert.Empty(t, resp.Header.Get("Content-Disposition"))
}

func TestFetch_UpstreamError(t *testing.T) {
	f := newFixture(t, relianceLine)
	f.mock.FailWith(http.StatusInternalServerError, `{"type":"error","code":"e-app-0005","description":"Internal error"}`)
	resp, body := f.submit(t, url.Values{"segments": {"NSECM"}})

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "Error fetching data:")
	assert.Contains(t, body, "Internal error")
}

func TestFetch_BadURL(t *testing.T) {
	f := newFixture(t, relianceLine)
	resp, body := f.submit(t, url.Values{"api_url": {"ftp://example.com"}, "segments": {"NSECM"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Error fetching data:")
}

func TestSegments(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ui.URL + "/segments")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []struct {
		Segment string `json:"segment"`
		Kind    string `json:"kind"`
		Columns int    `json:"columns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 12)
	assert.Equal(t, "NSECM", out[0].Segment)
	assert.Equal(t, "cash-market", out[0].Kind)
	assert.Equal(t, 22, out[0].Columns)
	assert.Equal(t, "derivatives", out[1].Kind)
	assert.Equal(t, 23, out[1].Columns)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.ui.URL + "/fetch")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFetch_RateLimitSpansURLs(t *testing.T) {
	mock := mockmaster.New(relianceLine)
	upstream := httptest.NewServer(mock.Handler())
	t.Cleanup(upstream.Close)
	apiURL := upstream.URL + mockmaster.Path

	srv := web.New(web.Config{
		APIURL:        apiURL,
		ClientOptions: masterapi.Options{RateLimitRPS: 10},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ui := httptest.NewServer(srv.Handler())
	t.Cleanup(ui.Close)

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := http.PostForm(ui.URL+"/fetch", url.Values{
			"api_url":  {fmt.Sprintf("%s?n=%d", apiURL, i)},
			"segments": {"NSECM"},
		})
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond, "one token bucket for every submitted URL")
	assert.Len(t, mock.Calls(), 3)
}

func TestFetch_CyclesAreSerialized(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int32
	fetch := core.FetchFunc(func(ctx context.Context, _ []string) (string, error) {
		calls.Add(1)
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return relianceLine, nil
	})

	srv := web.New(web.Config{
		APIURL: "http://instruments.invalid/master",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewFetcher: func(string) (core.FeedFetcher, error) {
			return fetch, nil
		},
	})
	ui := httptest.NewServer(srv.Handler())
	t.Cleanup(ui.Close)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.PostForm(ui.URL+"/fetch", url.Values{"segments": {"NSECM"}})
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int32(1), maxInFlight.Load())
}
