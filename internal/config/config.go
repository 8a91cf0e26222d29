package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		// Version pins the catalog served to new attempts; empty follows the latest seeded one.
		Version string `yaml:"version"`
		TTL     string `yaml:"ttl"`
	} `yaml:"catalog"`
	API struct {
		BaseURL string `yaml:"baseURL"`
		Timeout string `yaml:"timeout"`
		Token   string `yaml:"token"`
	} `yaml:"api"`
	Admin struct {
		PageSize int `yaml:"pageSize"`
	} `yaml:"admin"`
	Session struct {
		TTL string `yaml:"ttl"`
	} `yaml:"session"`
}

// Defaults is the configuration used for every field the YAML leaves empty.
func Defaults() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Catalog.TTL = "10m"
	cfg.API.BaseURL = "http://localhost:5000/api"
	cfg.API.Timeout = "15s"
	cfg.Admin.PageSize = 10
	cfg.Session.TTL = "2h"
	return cfg
}

// Load reads YAML config from path and fills unset fields from Defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := mergo.Merge(&cfg, Defaults()); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
