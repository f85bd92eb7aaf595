package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime settings shared by the portal server and the station.
type Config struct {
	Addr     string        `yaml:"addr"`
	DBPath   string        `yaml:"db"`
	LogPath  string        `yaml:"log"`
	BranchID string        `yaml:"branch_id"`
	Backend  BackendConfig `yaml:"backend"`
	Camera   CameraConfig  `yaml:"camera"`
	Session  SessionConfig `yaml:"session"`
}

// BackendConfig describes the CRM REST backend.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CameraConfig describes the optional IP camera used by the station.
type CameraConfig struct {
	SnapshotURL string        `yaml:"snapshot_url"`
	Interval    time.Duration `yaml:"interval"`
	// Viewport is the fraction of the frame, centred, that is searched for a
	// code.
	Viewport float64 `yaml:"viewport"`
}

// SessionConfig controls portal sessions.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:   ":8080",
		DBPath: "scanpoint.sqlite3",
		Backend: BackendConfig{
			Timeout: 15 * time.Second,
		},
		Camera: CameraConfig{
			Interval: 250 * time.Millisecond,
			Viewport: 0.7,
		},
		Session: SessionConfig{
			TTL: 12 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), a .env file in the working directory (if present) and
// SCANPOINT_* environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"SCANPOINT_ADDR":                &cfg.Addr,
		"SCANPOINT_DB":                  &cfg.DBPath,
		"SCANPOINT_LOG":                 &cfg.LogPath,
		"SCANPOINT_BRANCH_ID":           &cfg.BranchID,
		"SCANPOINT_BACKEND_URL":         &cfg.Backend.URL,
		"SCANPOINT_CAMERA_SNAPSHOT_URL": &cfg.Camera.SnapshotURL,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	dur := map[string]*time.Duration{
		"SCANPOINT_BACKEND_TIMEOUT": &cfg.Backend.Timeout,
		"SCANPOINT_CAMERA_INTERVAL": &cfg.Camera.Interval,
		"SCANPOINT_SESSION_TTL":     &cfg.Session.TTL,
	}
	for key, dst := range dur {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("SCANPOINT_CAMERA_VIEWPORT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing SCANPOINT_CAMERA_VIEWPORT: %w", err)
		}
		cfg.Camera.Viewport = f
	}
	return nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("backend url is required")
	}
	if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		return fmt.Errorf("backend url must be http or https: %s", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	if c.Camera.Viewport <= 0 || c.Camera.Viewport > 1 {
		return fmt.Errorf("camera viewport must be in (0, 1], got %v", c.Camera.Viewport)
	}
	if c.Camera.SnapshotURL != "" && c.Camera.Interval <= 0 {
		return errors.New("camera interval must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	return nil
}
