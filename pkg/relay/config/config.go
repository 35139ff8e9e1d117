package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable of the relay. No component reads environment
// variables on its own; everything flows through this struct.
type Config struct {
	Addr string

	// CORS / WebSocket origin allowlist. Empty means any origin is accepted,
	// which is the right default for a classroom tool served from changing
	// hosts; set it when deploying behind a fixed frontend.
	AllowedOrigins map[string]struct{}

	// WebSocket transport.
	ReadLimit        int64
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	SendQueueSize    int

	// Heartbeat sweep.
	HeartbeatInterval time.Duration
	LivenessWindow    time.Duration

	// Session lifecycle sweep.
	SweepInterval          time.Duration
	SpeakerAbsentTimeout   time.Duration
	ListenersAbsentTimeout time.Duration
	StaleTimeout           time.Duration
	CodeCooldown           time.Duration

	// Pipeline.
	TranscribeTimeout     time.Duration
	TranslateTimeout      time.Duration
	SynthesizeTimeout     time.Duration
	DefaultSynthesisTier  string
	DefaultSourceLanguage string
	CatalogPath           string

	// Provider credentials. The Polly tier authenticates through the AWS
	// default credential chain instead.
	DeepgramAPIKey   string
	GoogleAPIKey     string
	DeepLAPIKey      string
	GeminiAPIKey     string
	ElevenLabsAPIKey string

	// Transcript store.
	StoreCapacity int

	// HTTP server.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	LogLevel string
}

// Load resolves configuration from defaults, an optional TOML file, and
// LINGUACAST_* environment variables, in increasing precedence. path may be
// empty, in which case linguacast.toml is looked up in the working directory
// and a missing file is fine.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINGUACAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("linguacast")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Addr:                   v.GetString("addr"),
		AllowedOrigins:         make(map[string]struct{}),
		ReadLimit:              v.GetInt64("ws.read_limit"),
		HandshakeTimeout:       v.GetDuration("ws.handshake_timeout"),
		WriteTimeout:           v.GetDuration("ws.write_timeout"),
		SendQueueSize:          v.GetInt("ws.send_queue"),
		HeartbeatInterval:      v.GetDuration("heartbeat.interval"),
		LivenessWindow:         v.GetDuration("heartbeat.liveness_window"),
		SweepInterval:          v.GetDuration("sessions.sweep_interval"),
		SpeakerAbsentTimeout:   v.GetDuration("sessions.speaker_absent_timeout"),
		ListenersAbsentTimeout: v.GetDuration("sessions.listeners_absent_timeout"),
		StaleTimeout:           v.GetDuration("sessions.stale_timeout"),
		CodeCooldown:           v.GetDuration("sessions.code_cooldown"),
		TranscribeTimeout:      v.GetDuration("pipeline.transcribe_timeout"),
		TranslateTimeout:       v.GetDuration("pipeline.translate_timeout"),
		SynthesizeTimeout:      v.GetDuration("pipeline.synthesize_timeout"),
		DefaultSynthesisTier:   v.GetString("pipeline.default_synthesis_tier"),
		DefaultSourceLanguage:  v.GetString("pipeline.default_source_language"),
		CatalogPath:            v.GetString("pipeline.catalog"),
		DeepgramAPIKey:         v.GetString("providers.deepgram_api_key"),
		GoogleAPIKey:           v.GetString("providers.google_api_key"),
		DeepLAPIKey:            v.GetString("providers.deepl_api_key"),
		GeminiAPIKey:           v.GetString("providers.gemini_api_key"),
		ElevenLabsAPIKey:       v.GetString("providers.elevenlabs_api_key"),
		StoreCapacity:          v.GetInt("store.capacity"),
		ReadHeaderTimeout:      v.GetDuration("server.read_header_timeout"),
		ShutdownGracePeriod:    v.GetDuration("server.shutdown_grace"),
		LogLevel:               v.GetString("log.level"),
	}

	for _, origin := range splitCSV(v.GetString("server.cors_origins")) {
		cfg.AllowedOrigins[origin] = struct{}{}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("ws.read_limit", int64(512<<10)) // 512 KiB, base64 audio chunks included
	v.SetDefault("ws.handshake_timeout", 5*time.Second)
	v.SetDefault("ws.write_timeout", 5*time.Second)
	v.SetDefault("ws.send_queue", 32)
	v.SetDefault("heartbeat.interval", 30*time.Second)
	v.SetDefault("heartbeat.liveness_window", 75*time.Second)
	v.SetDefault("sessions.sweep_interval", 30*time.Second)
	v.SetDefault("sessions.speaker_absent_timeout", 5*time.Minute)
	v.SetDefault("sessions.listeners_absent_timeout", 10*time.Minute)
	v.SetDefault("sessions.stale_timeout", 30*time.Minute)
	v.SetDefault("sessions.code_cooldown", time.Hour)
	v.SetDefault("pipeline.transcribe_timeout", 10*time.Second)
	v.SetDefault("pipeline.translate_timeout", 8*time.Second)
	v.SetDefault("pipeline.synthesize_timeout", 15*time.Second)
	v.SetDefault("pipeline.default_synthesis_tier", "elevenlabs")
	v.SetDefault("pipeline.default_source_language", "en-US")
	v.SetDefault("pipeline.catalog", "")
	v.SetDefault("providers.deepgram_api_key", "")
	v.SetDefault("providers.google_api_key", "")
	v.SetDefault("providers.deepl_api_key", "")
	v.SetDefault("providers.gemini_api_key", "")
	v.SetDefault("providers.elevenlabs_api_key", "")
	v.SetDefault("store.capacity", 1000)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_grace", 15*time.Second)
	v.SetDefault("server.cors_origins", "")
	v.SetDefault("log.level", "info")
}

// Validate checks every field and names the offending config key.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("ws.read_limit must be > 0")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("ws.handshake_timeout must be > 0")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("ws.write_timeout must be > 0")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("ws.send_queue must be > 0")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat.interval must be > 0")
	}
	if c.LivenessWindow <= c.HeartbeatInterval {
		return fmt.Errorf("heartbeat.liveness_window must be > heartbeat.interval")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be > 0")
	}
	if c.SpeakerAbsentTimeout <= 0 {
		return fmt.Errorf("sessions.speaker_absent_timeout must be > 0")
	}
	if c.ListenersAbsentTimeout <= 0 {
		return fmt.Errorf("sessions.listeners_absent_timeout must be > 0")
	}
	if c.StaleTimeout <= 0 {
		return fmt.Errorf("sessions.stale_timeout must be > 0")
	}
	if c.CodeCooldown <= 0 {
		return fmt.Errorf("sessions.code_cooldown must be > 0")
	}
	if c.TranscribeTimeout <= 0 {
		return fmt.Errorf("pipeline.transcribe_timeout must be > 0")
	}
	if c.TranslateTimeout <= 0 {
		return fmt.Errorf("pipeline.translate_timeout must be > 0")
	}
	if c.SynthesizeTimeout <= 0 {
		return fmt.Errorf("pipeline.synthesize_timeout must be > 0")
	}
	if strings.TrimSpace(c.DefaultSynthesisTier) == "" {
		return fmt.Errorf("pipeline.default_synthesis_tier must not be empty")
	}
	if strings.TrimSpace(c.DefaultSourceLanguage) == "" {
		return fmt.Errorf("pipeline.default_source_language must not be empty")
	}
	if c.StoreCapacity <= 0 {
		return fmt.Errorf("store.capacity must be > 0")
	}
	if c.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("server.read_header_timeout must be > 0")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("server.shutdown_grace must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug|info|warn|error")
	}
	return nil
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
