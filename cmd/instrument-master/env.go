package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/instrument-master/internal/config"
)

// loadSettings layers the config file (if any) and then environment variables
// over the built-in defaults.
func loadSettings(configPath string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	envString("API_URL", &cfg.APIURL)
	envString("OUTPUT", &cfg.Output)
	envString("COMPRESSION", &cfg.Compression)
	envString("LISTEN_ADDR", &cfg.ListenAddr)
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FORMAT", &cfg.Log.Format)
	if segs := envList("SEGMENTS"); segs != nil {
		cfg.Segments = segs
	}

	timeout, err := envDuration("REQUEST_TIMEOUT", time.Duration(cfg.RequestTimeout))
	if err != nil {
		return config.Config{}, err
	}
	cfg.RequestTimeout = config.Duration(timeout)

	if cfg.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return config.Config{}, err
	}

	envString("S3_ENDPOINT", &cfg.ObjectStore.Endpoint)
	envString("S3_ACCESS_KEY_ID", &cfg.ObjectStore.AccessKeyID)
	envString("S3_SECRET_ACCESS_KEY", &cfg.ObjectStore.SecretAccessKey)
	envString("S3_REGION", &cfg.ObjectStore.Region)
	if cfg.ObjectStore.UseSSL, err = envBool("S3_USE_SSL", cfg.ObjectStore.UseSSL); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func envString(varName string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		*dst = v
	}
}

// envList splits a comma-separated variable; nil means unset.
func envList(varName string) []string {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return nil
	}
	return splitCSV(v)
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
