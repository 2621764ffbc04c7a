package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Service struct {
	URL string `mapstructure:"url"`
}

type ASR struct {
	Provider string `mapstructure:"provider"` // "http" (whisper service) or "openai"
	URL      string `mapstructure:"url"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	APIKey   string `mapstructure:"api_key"`
}

type Expression struct {
	URL             string        `mapstructure:"url"`
	APIKey          string        `mapstructure:"api_key"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	InitialDelay    time.Duration `mapstructure:"initial_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	FrameNormalizer float64       `mapstructure:"frame_normalizer"`
	TopK            int           `mapstructure:"top_k"`
}

type Chat struct {
	Provider          string  `mapstructure:"provider"` // "openai" (any compatible endpoint) or "gemini"
	URL               string  `mapstructure:"url"`
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type Services struct {
	ASR           ASR        `mapstructure:"asr"`
	Expression    Expression `mapstructure:"expression"`
	Chat          Chat       `mapstructure:"chat"`
	Emotion       Service    `mapstructure:"emotion"`
	Visualization Service    `mapstructure:"visualization"`
}

type Media struct {
	FFmpeg     string  `mapstructure:"ffmpeg"`
	FFprobe    string  `mapstructure:"ffprobe"`
	ClipLength float64 `mapstructure:"clip_length"` // seconds
	SampleRate int     `mapstructure:"sample_rate"`
	Channels   int     `mapstructure:"channels"`
	WorkDir    string  `mapstructure:"work_dir"`
}

type Transcribe struct {
	Concurrency int `mapstructure:"concurrency"`
}

type Scoring struct {
	Mode           string  `mapstructure:"mode"` // average | narrative | combined
	WeightsFile    string  `mapstructure:"weights_file"`
	ParseDefault   float64 `mapstructure:"parse_default"`
	FailureDefault float64 `mapstructure:"failure_default"`
}

type Root struct {
	Pipeline struct {
		Name    string `mapstructure:"name"`
		Version string `mapstructure:"version"`
		LogLvl  string `mapstructure:"log_level"`
	} `mapstructure:"pipeline"`
	Media      Media      `mapstructure:"media"`
	Services   Services   `mapstructure:"services"`
	Transcribe Transcribe `mapstructure:"transcribe"`
	Scoring    Scoring    `mapstructure:"scoring"`
	Paths      struct {
		Outputs string `mapstructure:"outputs"`
	} `mapstructure:"paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "interview-assessment")
	v.SetDefault("pipeline.version", "dev")
	v.SetDefault("pipeline.log_level", "info")

	v.SetDefault("media.ffmpeg", "ffmpeg")
	v.SetDefault("media.ffprobe", "ffprobe")
	v.SetDefault("media.clip_length", 5.0)
	v.SetDefault("media.sample_rate", 16000)
	v.SetDefault("media.channels", 1)
	v.SetDefault("media.work_dir", os.TempDir())

	v.SetDefault("services.asr.provider", "http")
	v.SetDefault("services.asr.url", "http://localhost:8001")
	v.SetDefault("services.asr.model", "whisper-1")
	v.SetDefault("services.asr.language", "en")
	v.SetDefault("services.asr.api_key", "")

	v.SetDefault("services.expression.url", "https://api.hume.ai")
	v.SetDefault("services.expression.api_key", "")
	v.SetDefault("services.expression.poll_timeout", 120*time.Second)
	v.SetDefault("services.expression.initial_delay", time.Second)
	v.SetDefault("services.expression.max_delay", 16*time.Second)
	v.SetDefault("services.expression.frame_normalizer", 15.0)
	v.SetDefault("services.expression.top_k", 3)

	v.SetDefault("services.chat.provider", "openai")
	v.SetDefault("services.chat.url", "https://api.groq.com/openai/v1")
	v.SetDefault("services.chat.model", "llama-3.1-8b-instant")
	v.SetDefault("services.chat.api_key", "")
	v.SetDefault("services.chat.requests_per_second", 0.0)

	v.SetDefault("services.emotion.url", "")
	v.SetDefault("services.visualization.url", "")

	v.SetDefault("transcribe.concurrency", 4)

	v.SetDefault("scoring.mode", "combined")
	v.SetDefault("scoring.weights_file", "")
	v.SetDefault("scoring.parse_default", 30.0)
	v.SetDefault("scoring.failure_default", 20.0)

	v.SetDefault("paths.outputs", "outputs")
}

// credentials maps config keys to the provider env vars accepted in addition
// to the ASSESS_ prefixed form.
var credentials = map[string][]string{
	"services.expression.api_key": {"HUME_API_KEY"},
}

// providerKeys lists, per provider, the env vars consulted for an API key that
// neither the file nor ASSESS_* set.
var providerKeys = map[string][]string{
	"openai": {"GROQ_API_KEY", "OPENAI_API_KEY"},
	"gemini": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

func providerKey(provider, current string) string {
	if current != "" {
		return current
	}
	for _, env := range providerKeys[provider] {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}

// Load reads the configuration. An empty path falls back to
// config/<CONFIG_ENV>/config.yaml, then src/shared/config.yaml, then defaults.
// ASSESS_* environment variables override file values.
func Load(path string) (*Root, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ASSESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range credentials {
		prefixed := "ASSESS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, envs...)...); err != nil {
			return nil, err
		}
	}

	if path == "" {
		path = guess()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Services.Chat.APIKey = providerKey(cfg.Services.Chat.Provider, cfg.Services.Chat.APIKey)
	cfg.Services.ASR.APIKey = providerKey(cfg.Services.ASR.Provider, cfg.Services.ASR.APIKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func guess() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	for _, p := range []string{
		filepath.Join("config", env, "config.yaml"),
		filepath.Join("src", "shared", "config.yaml"),
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

const minClipLength = 0.1

func (c *Root) Validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(c.Media.ClipLength >= minClipLength, "media.clip_length must be >= %v, got %v", minClipLength, c.Media.ClipLength)
	check(c.Media.SampleRate > 0, "media.sample_rate must be > 0")
	check(c.Media.Channels > 0, "media.channels must be > 0")

	e := c.Services.Expression
	check(e.PollTimeout > 0, "services.expression.poll_timeout must be > 0")
	check(e.InitialDelay > 0, "services.expression.initial_delay must be > 0")
	check(e.MaxDelay >= e.InitialDelay, "services.expression.max_delay must be >= initial_delay")
	check(e.FrameNormalizer > 0, "services.expression.frame_normalizer must be > 0")
	check(e.TopK > 0, "services.expression.top_k must be > 0")

	check(oneOf(c.Services.ASR.Provider, "http", "openai"), "services.asr.provider %q not supported", c.Services.ASR.Provider)
	check(oneOf(c.Services.Chat.Provider, "openai", "gemini"), "services.chat.provider %q not supported", c.Services.Chat.Provider)
	check(c.Services.Chat.RequestsPerSecond >= 0, "services.chat.requests_per_second must be >= 0")

	check(c.Transcribe.Concurrency > 0, "transcribe.concurrency must be > 0")
	check(oneOf(c.Scoring.Mode, "average", "narrative", "combined"), "scoring.mode %q not supported", c.Scoring.Mode)

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(problems...))
	}
	return nil
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}
