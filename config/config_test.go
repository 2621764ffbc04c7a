package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Media.ClipLength != 5 {
		t.Errorf("clip_length = %v, want 5", cfg.Media.ClipLength)
	}
	e := cfg.Services.Expression
	if e.PollTimeout != 120*time.Second || e.InitialDelay != time.Second || e.MaxDelay != 16*time.Second {
		t.Errorf("poll defaults = %v/%v/%v", e.PollTimeout, e.InitialDelay, e.MaxDelay)
	}
	if e.FrameNormalizer != 15 || e.TopK != 3 {
		t.Errorf("facs defaults = %v/%v", e.FrameNormalizer, e.TopK)
	}
	if cfg.Scoring.Mode != "combined" || cfg.Scoring.ParseDefault != 30 || cfg.Scoring.FailureDefault != 20 {
		t.Errorf("scoring defaults = %+v", cfg.Scoring)
	}
	if cfg.Services.Chat.Model != "llama-3.1-8b-instant" {
		t.Errorf("chat model = %q", cfg.Services.Chat.Model)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	p := writeConfig(t, `
pipeline:
  log_level: debug
media:
  clip_length: 10
services:
  expression:
    poll_timeout: 30s
  chat:
    model: from-file
scoring:
  mode: average
`)
	t.Setenv("ASSESS_SERVICES_CHAT_MODEL", "from-env")
	t.Setenv("HUME_API_KEY", "hume-secret")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.LogLvl != "debug" {
		t.Errorf("log_level = %q", cfg.Pipeline.LogLvl)
	}
	if cfg.Media.ClipLength != 10 {
		t.Errorf("clip_length = %v", cfg.Media.ClipLength)
	}
	if cfg.Services.Expression.PollTimeout != 30*time.Second {
		t.Errorf("poll_timeout = %v", cfg.Services.Expression.PollTimeout)
	}
	if cfg.Services.Chat.Model != "from-env" {
		t.Errorf("env override not applied: %q", cfg.Services.Chat.Model)
	}
	if cfg.Services.Expression.APIKey != "hume-secret" {
		t.Errorf("HUME_API_KEY not bound: %q", cfg.Services.Expression.APIKey)
	}
	if cfg.Scoring.Mode != "average" {
		t.Errorf("mode = %q", cfg.Scoring.Mode)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	p := writeConfig(t, `
media:
  clip_length: 0
scoring:
  mode: median
`)
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"media.clip_length", "scoring.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	p = writeConfig(t, `
media:
  clip_length: 1e-300
`)
	if _, err := Load(p); err == nil || !strings.Contains(err.Error(), "media.clip_length") {
		t.Fatalf("tiny clip_length accepted: %v", err)
	}
}

func TestProviderCredentials(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "openai-secret")
	t.Setenv("GEMINI_API_KEY", "gemini-secret")

	p := writeConfig(t, `
services:
  asr:
    provider: openai
  chat:
    provider: gemini
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Services.Chat.APIKey != "gemini-secret" {
		t.Errorf("gemini chat key = %q", cfg.Services.Chat.APIKey)
	}
	if cfg.Services.ASR.APIKey != "openai-secret" {
		t.Errorf("openai asr key = %q", cfg.Services.ASR.APIKey)
	}

	t.Setenv("ASSESS_SERVICES_CHAT_API_KEY", "explicit")
	cfg, err = Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Services.Chat.APIKey != "explicit" {
		t.Errorf("explicit chat key = %q", cfg.Services.Chat.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
