// Package config handles loading and parsing jobdeck configuration files.
//
// # Overview
//
// This package reads jobdeck's TOML configuration to discover the
// aggregator's HTTP endpoint, the push-channel URL, and the set of hosts
// to monitor. Sync cadence tunables live under the [sync] table.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/jobdeck/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - Config file: ~/.config/jobdeck/config.toml
//   - API endpoint: 127.0.0.1:8642
//   - Data directory: ~/.local/share/jobdeck
//   - Active poll interval: 30s; background poll: 2m
//   - Push liveness window: 15s
//   - Push URL: empty (poll-only mode)
//
// # TOML Format
//
// Example config.toml:
//
//	api_bind = "127.0.0.1:8642"
//	push_url = "ws://127.0.0.1:8642/api/v1/stream"
//	hosts = ["hpc-east", "hpc-west", "gpu-cluster"]
//	data_dir = "~/.local/share/jobdeck"
//
//	[sync]
//	active_poll_seconds = 30
//	background_poll_seconds = 120
//	liveness_window_seconds = 15
//
// All fields are optional. Tilde expansion is performed automatically.
//
// # Error Handling
//
// Load returns errors for path expansion failures, file read errors
// (except os.ErrNotExist, which triggers defaults), and TOML parsing
// errors. Missing config files are NOT an error - defaults are used
// instead, so jobdeck works out-of-the-box against a local aggregator.
//
// # Design Philosophy
//
// The config package is read-only and stateless - it loads configuration
// once at startup and returns an immutable Config struct. No global state
// or singleton patterns are used.
package config
