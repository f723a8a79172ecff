package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadYAMLFillsDefaults(t *testing.T) {
	path := writeFile(t, "cfg.yaml", "environment: test\ncollector:\n  batch_size: 200\n  batch_timeout: 5s\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Collector.BatchSize != 200 || c.Collector.BatchTimeout != 5*time.Second {
		t.Fatalf("overrides not applied: %+v", c.Collector)
	}
	if c.Collector.CoverageTarget != 0.70 || c.Builder.MaxDTE != 45 || c.Rates.Fallback != 0.042 {
		t.Fatalf("defaults not applied: %+v %+v", c.Collector, c.Builder)
	}
	if c.Kafka.Topics.Ranked != "spreads.ranked" || c.Pricing.Method != "black_scholes" {
		t.Fatalf("nested defaults not applied")
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "cfg.toml", "environment = \"production\"\n\n[pricing]\nmethod = \"delta\"\n\n[builder]\nmax_roi = 60.0\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "production" || c.Pricing.Method != "delta" || c.Builder.MaxROI != 60 {
		t.Fatalf("unexpected config %+v %+v", c.Pricing, c.Builder)
	}
}

func TestValidateCrossField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"dte band", func(c *Config) { c.Builder.MinDTE = 50 }, "min_dte"},
		{"suspect below max", func(c *Config) { c.Builder.SuspectROI = 40 }, "suspect_roi"},
		{"weights", func(c *Config) { c.Ranking.WeightScore = 0.5 }, "weights"},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true }, "brokers"},
		{"telegram", func(c *Config) { c.Notify.Telegram.Enabled = true }, "bot_token"},
		{"method", func(c *Config) { c.Pricing.Method = "monte_carlo" }, "Method"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"KAFKA_BROKERS":       "k1:9092, k2:9092",
		"POP_METHOD":          "delta",
		"FEED_TOKEN":          "secret",
		"PORT":                "9090",
		"MIN_LIQUIDITY_SCORE": "bogus",
	}
	c.applyEnv(func(k string) string { return env[k] })
	if c.Server.Port != 9090 {
		t.Fatalf("port = %d", c.Server.Port)
	}
	if c.Liquidity.MinScore != 40 {
		t.Fatalf("invalid MIN_LIQUIDITY_SCORE must keep the default, got %v", c.Liquidity.MinScore)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Pricing.Method != "delta" || c.Feed.Token != "secret" {
		t.Fatalf("env overrides not applied")
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := writeFile(t, "cfg.yml", "environment: test\n")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Notify.Telegram.ChatID != "42" {
		t.Fatalf("chat id = %q", c.Notify.Telegram.ChatID)
	}
}

func TestShippedConfigLoads(t *testing.T) {
	if _, err := Load(filepath.Join("..", "..", "config", "config.yaml")); err != nil {
		t.Fatalf("config/config.yaml: %v", err)
	}
}
