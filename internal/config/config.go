// Package config loads renditionctl settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pelletier/go-toml/v2"

	"github.com/agleyzer/renditionctl/internal/cluster"
	"github.com/agleyzer/renditionctl/internal/codecs"
)

// Cluster contains replication settings.
type Cluster struct {
	Enabled  bool     `toml:"enabled"`
	RaftID   string   `toml:"raft_id"`
	Bind     string   `toml:"bind"`
	Peers    []string `toml:"peers"`
	LogLevel string   `toml:"log_level"`
}

// Config holds all settings. Flags given on the command line take
// precedence over file values.
type Config struct {
	Manifest   string   `toml:"manifest"`
	Port       int      `toml:"port"`
	Verbose    bool     `toml:"verbose"`
	Codecs     []string `toml:"codecs"`
	AudioTrack string   `toml:"audio_track"`
	Disable    []string `toml:"disable"`
	Exclude    []string `toml:"exclude"`
	Cluster    Cluster  `toml:"cluster"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:   8080,
		Codecs: codecs.DefaultSupport().Families(),
		Cluster: Cluster{
			LogLevel: "off",
		},
	}
}

// Load parses the file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.Cluster.LogLevel != "" && hclog.LevelFromString(c.Cluster.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("invalid cluster log_level %q", c.Cluster.LogLevel)
	}

	if c.Cluster.Enabled {
		if c.Cluster.Bind == "" {
			return errors.New("cluster requires bind")
		}
		if len(c.Cluster.Peers) == 0 {
			return errors.New("cluster requires peers")
		}
	}

	return nil
}

// Support returns the playable codec families.
func (c *Config) Support() codecs.Support {
	return codecs.NewSupport(c.Codecs...)
}

// ClusterConfig converts the cluster section for cluster.NewManager.
func (c *Config) ClusterConfig() cluster.Config {
	level := hclog.Off
	if c.Cluster.LogLevel != "" {
		level = hclog.LevelFromString(c.Cluster.LogLevel)
	}

	peers := make([]string, 0, len(c.Cluster.Peers))
	for _, p := range c.Cluster.Peers {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}

	return cluster.Config{
		RaftID:       c.Cluster.RaftID,
		BindAddr:     c.Cluster.Bind,
		Peers:        peers,
		RaftLogLevel: level,
	}
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
