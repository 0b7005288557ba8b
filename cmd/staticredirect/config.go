package main

import (
	"errors"
	"fmt"
	"io/ioutil"
	"net/url"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the serve configuration.
type Config struct {
	Listen        string       `yaml:"listen"`
	MetricsListen string       `yaml:"metrics_listen"`
	Sites         []SiteConfig `yaml:"sites"`
}

// SiteConfig describes one static site and where its redirects come from.
type SiteConfig struct {
	// Scope is the absolute URL the site is published under.
	Scope string `yaml:"scope"`
	// Root is the directory holding the site's files. When set, the site is
	// served from it and its redirects.json is read from disk.
	Root string `yaml:"root"`
	// ManifestURL overrides where the manifest is fetched from.
	ManifestURL      string        `yaml:"manifest_url"`
	AssumeNavigation bool          `yaml:"assume_navigation"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	Watch            bool          `yaml:"watch"`
}

// LoadConfig reads, defaults and validates the configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range cfg.Sites {
		if cfg.Sites[i].Root != "" && !filepath.IsAbs(cfg.Sites[i].Root) {
			cfg.Sites[i].Root = filepath.Join(base, cfg.Sites[i].Root)
		}
	}
	return cfg, nil
}

// ParseConfig decodes a YAML configuration, applies defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
}

// Validate checks the configuration for problems that would stop serve.
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return errors.New("no sites configured")
	}
	for i, site := range c.Sites {
		u, err := url.Parse(site.Scope)
		if err != nil {
			return fmt.Errorf("site %d: invalid scope: %w", i, err)
		}
		if !u.IsAbs() {
			return fmt.Errorf("site %d: scope %q must be an absolute URL", i, site.Scope)
		}
		if site.ManifestURL != "" {
			if _, err := url.Parse(site.ManifestURL); err != nil {
				return fmt.Errorf("site %d: invalid manifest_url: %w", i, err)
			}
		}
		if site.Watch && (site.Root == "" || site.ManifestURL != "") {
			return fmt.Errorf("site %d: watch needs a root and no manifest_url", i)
		}
		if site.FetchTimeout < 0 {
			return fmt.Errorf("site %d: fetch_timeout can't be negative", i)
		}
	}
	return nil
}
