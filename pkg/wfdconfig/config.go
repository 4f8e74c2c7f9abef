// Package wfdconfig loads the runtime configuration for the wfd tools
// from a simple key=value env file, in the teacher's historical
// .env-loading style (see original_source/ for the protocol this
// configures access to).
package wfdconfig

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything a wfd session needs to talk to a
// wpa_supplicant control interface and pace a Miracast media stream.
type Config struct {
	Supplicant SupplicantConfig
	Media      MediaConfig
	Metrics    MetricsConfig
}

// SupplicantConfig points at the wpa_supplicant control socket this
// process attaches to.
type SupplicantConfig struct {
	CtrlPath      string
	RequestTimeout time.Duration
}

// MediaConfig tunes the depacketizer/pacer.
type MediaConfig struct {
	ClockRate  uint32
	MaxJitter  time.Duration
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	ListenAddr string
	Enabled    bool
}

// Default returns a Config with the documented defaults.
func Default() *Config {
	return &Config{
		Supplicant: SupplicantConfig{
			CtrlPath:       "/var/run/wpa_supplicant/p2p-dev-wlan0",
			RequestTimeout: 2 * time.Second,
		},
		Media: MediaConfig{
			ClockRate: 90000,
			MaxJitter: 200 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9115",
			Enabled:    true,
		},
	}
}

// Load reads configuration from a key=value env file, overlaying it on
// top of Default(). Unrecognized keys are ignored; comments ('#') and
// blank lines are skipped. Values are URL-unescaped if possible, to
// allow paths/addresses with encoded characters.
func Load(envPath string) (*Config, error) {
	file, err := os.Open(envPath)
	if err != nil {
		return nil, fmt.Errorf("wfdconfig: open %s: %w", envPath, err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}

		if err := cfg.set(key, value); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wfdconfig: scan %s: %w", envPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "ctrl_path":
		c.Supplicant.CtrlPath = value
	case "request_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("wfdconfig: request_timeout: %w", err)
		}
		c.Supplicant.RequestTimeout = d
	case "clock_rate":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("wfdconfig: clock_rate: %w", err)
		}
		c.Media.ClockRate = uint32(n)
	case "max_jitter":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("wfdconfig: max_jitter: %w", err)
		}
		c.Media.MaxJitter = d
	case "metrics_listen_addr":
		c.Metrics.ListenAddr = value
	case "metrics_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("wfdconfig: metrics_enabled: %w", err)
		}
		c.Metrics.Enabled = b
	}
	return nil
}

// Validate checks that all required configuration fields are present and sane.
func (c *Config) Validate() error {
	if c.Supplicant.CtrlPath == "" {
		return fmt.Errorf("wfdconfig: missing ctrl_path")
	}
	if c.Supplicant.RequestTimeout <= 0 {
		return fmt.Errorf("wfdconfig: request_timeout must be positive")
	}
	if c.Media.ClockRate == 0 {
		return fmt.Errorf("wfdconfig: clock_rate must be positive")
	}
	return nil
}
