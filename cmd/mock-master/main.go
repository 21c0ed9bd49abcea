package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shpitdev/instrument-master/internal/mockmaster"
)

func main() {
	addr := defaultString("MOCK_MASTER_ADDR", ":8080")
	feedPath := defaultString("MOCK_MASTER_FEED", "")

	fs := flag.NewFlagSet("mock-master", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address (env: MOCK_MASTER_ADDR)")
	fs.StringVar(&feedPath, "feed", feedPath, "File of pipe-delimited instrument lines to serve (env: MOCK_MASTER_FEED)")
	_ = fs.Parse(os.Args[1:])

	srv := mockmaster.New()
	if feedPath != "" {
		var err error
		srv, err = mockmaster.NewFromFile(feedPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "mock-master: %v\n", err)
			os.Exit(2)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-master listening on %s%s (feed=%s)\n", addr, mockmaster.Path, feedPath)
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := hs.ListenAndServe(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
