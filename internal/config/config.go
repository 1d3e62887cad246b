package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	Match struct {
		Duration             string `yaml:"duration"`
		Questions            int    `yaml:"questions"`
		SendBuffer           int    `yaml:"send_buffer"`
		PersistTimeout       string `yaml:"persist_timeout"`
		PersistRetries       int    `yaml:"persist_retries"`
		PersistRetryInterval string `yaml:"persist_retry_interval"`
	} `yaml:"match"`
	Leaderboard struct {
		TTL     string `yaml:"ttl"`
		Refresh string `yaml:"refresh"`
		Size    int    `yaml:"size"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets deployments keep secrets and endpoints out of the YAML file.
func (c *Config) applyEnv() {
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Postgres.URL, "DATABASE_URL")
	setString(&c.NATS.URL, "NATS_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	if raw := os.Getenv("MATCH_DURATION"); raw != "" {
		c.Match.Duration = raw
	}
	if raw := os.Getenv("MATCH_QUESTIONS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			c.Match.Questions = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
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

// IntOr returns v, or fallback when v is not positive.
func IntOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
