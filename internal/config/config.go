package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shpitdev/instrument-master/pkg/export"
	"github.com/shpitdev/instrument-master/pkg/masterapi"
)

// Config is the file-level configuration. Every field is optional; Default
// supplies the values a bare run uses.
//
// Example (YAML):
//
//	api_url: https://developers.symphonyfintech.in/apibinarymarketdata/instruments/master
//	segments: [NSECM, NSEFO]
//	output: exports/
//	compression: gzip
//	request_timeout: 2m
//	log:
//	  level: debug
//	object_store:
//	  endpoint: minio.internal:9000
//	  use_ssl: true
type Config struct {
	APIURL         string      `yaml:"api_url"`
	Segments       []string    `yaml:"segments"`
	Output         string      `yaml:"output"`
	Compression    string      `yaml:"compression"`
	RequestTimeout Duration    `yaml:"request_timeout"`
	RateLimitRPS   float64     `yaml:"rate_limit_rps"`
	ListenAddr     string      `yaml:"listen_addr"`
	Log            Log         `yaml:"log"`
	ObjectStore    ObjectStore `yaml:"object_store"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ObjectStore struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
	UseSSL          bool   `yaml:"use_ssl"`
}

// Duration decodes Go duration strings such as "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, raw, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:      masterapi.DefaultURL,
		Segments:    []string{"NSECM", "NSEFO"},
		Output:      export.DefaultFilename,
		Compression: string(export.CompressionNone),
		ListenAddr:  ":8501",
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path and layers it over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := decode(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
