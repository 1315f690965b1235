package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the fields jobdeck needs to reach its clusters.
type Config struct {
	APIBind        string
	PushURL        string
	Hosts          []string
	DataDir        string
	ActivePoll     time.Duration
	BackgroundPoll time.Duration
	LivenessWindow time.Duration
}

const (
	defaultConfigPath     = "~/.config/jobdeck/config.toml"
	defaultDataDir        = "~/.local/share/jobdeck"
	defaultAPIBind        = "127.0.0.1:8642"
	defaultActivePoll     = 30 * time.Second
	defaultBackgroundPoll = 2 * time.Minute
	defaultLiveness       = 15 * time.Second
)

// Load locates and parses the jobdeck config, falling back to defaults
// when the file is missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIBind:        defaultAPIBind,
		DataDir:        mustExpand(defaultDataDir),
		ActivePoll:     defaultActivePoll,
		BackgroundPoll: defaultBackgroundPoll,
		LivenessWindow: defaultLiveness,
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBind string   `toml:"api_bind"`
		PushURL string   `toml:"push_url"`
		Hosts   []string `toml:"hosts"`
		DataDir string   `toml:"data_dir"`
		Sync    struct {
			ActivePollSeconds     int `toml:"active_poll_seconds"`
			BackgroundPollSeconds int `toml:"background_poll_seconds"`
			LivenessSeconds       int `toml:"liveness_window_seconds"`
		} `toml:"sync"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if bind := strings.TrimSpace(raw.APIBind); bind != "" {
		cfg.APIBind = bind
	}
	cfg.PushURL = strings.TrimSpace(raw.PushURL)
	for _, host := range raw.Hosts {
		if host = strings.TrimSpace(host); host != "" {
			cfg.Hosts = append(cfg.Hosts, host)
		}
	}
	if dir := strings.TrimSpace(raw.DataDir); dir != "" {
		cfg.DataDir = mustExpand(dir)
	}
	if raw.Sync.ActivePollSeconds > 0 {
		cfg.ActivePoll = time.Duration(raw.Sync.ActivePollSeconds) * time.Second
	}
	if raw.Sync.BackgroundPollSeconds > 0 {
		cfg.BackgroundPoll = time.Duration(raw.Sync.BackgroundPollSeconds) * time.Second
	}
	if raw.Sync.LivenessSeconds > 0 {
		cfg.LivenessWindow = time.Duration(raw.Sync.LivenessSeconds) * time.Second
	}

	return cfg, nil
}

// CachePath returns the path to the last-good job cache database.
func (c Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// LogPath returns the path to the jobdeck log file.
func (c Config) LogPath() string {
	return filepath.Join(c.DataDir, "jobdeck.log")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
