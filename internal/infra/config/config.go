package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Router    RouterConfig    `yaml:"router"`
	Responder ResponderConfig `yaml:"responder"`
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Audit     AuditConfig     `yaml:"audit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// RouterConfig tunes agent selection.
type RouterConfig struct {
	SequenceStep       time.Duration `yaml:"sequence_step"`
	MaxSelected        int           `yaml:"max_selected"`
	MinScore           float64       `yaml:"min_score"`
	FallbackAgent      string        `yaml:"fallback_agent"`
	FallbackConfidence float64       `yaml:"fallback_confidence"`
	Weights            WeightsConfig `yaml:"weights"`
}

// WeightsConfig holds the per-rule scoring weights.
type WeightsConfig struct {
	KeywordHit      float64 `yaml:"keyword_hit"`
	LifeApplication float64 `yaml:"life_application"`
	Companionship   float64 `yaml:"companionship"`
	TheologicalCue  float64 `yaml:"theological_cue"`
	HistoricalCue   float64 `yaml:"historical_cue"`
}

// ResponderConfig selects and configures the backend that writes agent replies.
type ResponderConfig struct {
	Type           string               `yaml:"type"` // "auto", "anthropic" or "stub"
	Provider       ProviderConfig       `yaml:"provider"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	PromptsDir     string               `yaml:"prompts_dir,omitempty"` // <RoleName>.md overrides
	Timeout        time.Duration        `yaml:"timeout"`               // per role call
	Stagger        bool                 `yaml:"stagger"`               // honour sequence delays server side
	FailoverToStub bool                 `yaml:"failover_to_stub"`      // answer with the stub when the API fails
}

// CircuitBreakerConfig holds circuit breaker settings for the responder.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for the responder.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds the Messages API connection settings.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	ExposeRouting   bool            `yaml:"expose_routing"` // include the raw routing result in /route responses
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// SessionConfig holds in-memory session settings.
type SessionConfig struct {
	MaxCalls int           `yaml:"max_calls"`
	TTL      time.Duration `yaml:"ttl"`
}

// AuditConfig holds routing audit trail settings.
type AuditConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// SchedulerConfig holds maintenance scheduler settings.
type SchedulerConfig struct {
	Enabled bool                  `yaml:"enabled"`
	Tasks   []ScheduledTaskConfig `yaml:"tasks"`
}

// ScheduledTaskConfig describes one recurring maintenance task.
type ScheduledTaskConfig struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"` // cron expression or duration
	Action   string `yaml:"action"`
	OneShot  bool   `yaml:"one_shot"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	SampleRatio float64 `yaml:"sample_ratio"` // 0 or 1 samples every trace
}

// defaultDataDir returns the persistent data directory under $HOME/.devolight/data.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".devolight", "data")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Router: RouterConfig{
			SequenceStep:       2 * time.Second,
			MaxSelected:        2,
			MinScore:           0.3,
			FallbackAgent:      "antioch",
			FallbackConfidence: 0.5,
			Weights: WeightsConfig{
				KeywordHit:      0.3,
				LifeApplication: 0.4,
				Companionship:   0.5,
				TheologicalCue:  0.3,
				HistoricalCue:   0.4,
			},
		},
		Responder: ResponderConfig{
			Type: "auto",
			Provider: ProviderConfig{
				Name:        "anthropic",
				BaseURL:     "https://api.anthropic.com",
				Model:       "claude-sonnet-4-20250514",
				MaxTokens:   1024,
				Temperature: 0,
				ConnTimeout: 30 * time.Second,
				RespTimeout: 30 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			Timeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			CORSOrigins:     []string{"http://localhost:5173"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 5,
				Burst:             10,
			},
		},
		Session: SessionConfig{
			MaxCalls: 20,
			TTL:      24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:   false,
			Path:      filepath.Join(dataDir, "audit.db"),
			Retention: 30 * 24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Tasks: []ScheduledTaskConfig{
				{Name: "reap-sessions", Schedule: "10m", Action: "session_reap"},
				{Name: "audit-retention", Schedule: "@daily", Action: "audit_retention"},
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("DEVOLIGHT_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps DEVOLIGHT_* and DEVO_CLAUDE_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVOLIGHT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("DEVOLIGHT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("DEVOLIGHT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("DEVOLIGHT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("DEVOLIGHT_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DEVOLIGHT_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitAndTrim(v, ",")
	}
	if v := os.Getenv("DEVOLIGHT_RATE_LIMIT_ENABLED"); v != "" {
		cfg.Server.RateLimit.Enabled = v == "true"
	}
	if v := os.Getenv("DEVOLIGHT_SEQUENCE_STEP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Router.SequenceStep = d
		}
	}
	if v := os.Getenv("DEVOLIGHT_RESPONDER_TYPE"); v != "" {
		cfg.Responder.Type = v
	}
	if v := os.Getenv("DEVOLIGHT_PROMPTS_DIR"); v != "" {
		cfg.Responder.PromptsDir = v
	}
	if v := os.Getenv("DEVOLIGHT_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Session.TTL = d
		}
	}
	if v := os.Getenv("DEVOLIGHT_AUDIT_ENABLED"); v != "" {
		cfg.Audit.Enabled = v == "true"
	}
	if v := os.Getenv("DEVOLIGHT_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("DEVOLIGHT_SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = v == "true"
	}

	// Claude client settings keep their historical names.
	p := &cfg.Responder.Provider
	if v := os.Getenv("DEVO_CLAUDE_API_KEY"); v != "" {
		p.APIKey = v
	}
	if v := os.Getenv("DEVO_CLAUDE_BASE_URL"); v != "" {
		p.BaseURL = v
	}
	if v := os.Getenv("DEVO_CLAUDE_MODEL"); v != "" {
		p.Model = v
	}
	if v := os.Getenv("DEVO_CLAUDE_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.MaxTokens = n
		}
	}
	if v := os.Getenv("DEVO_CLAUDE_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			p.Temperature = f
		}
	}
	if v := os.Getenv("DEVO_CLAUDE_TIMEOUT"); v != "" {
		// Seconds, as a plain number, or a Go duration.
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			p.RespTimeout = time.Duration(f * float64(time.Second))
		} else if d, err := time.ParseDuration(v); err == nil && d > 0 {
			p.RespTimeout = d
		}
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
// Empty elements are dropped.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets finds "enc:..." values and decrypts them in place.
func decryptSecrets(cfg *Config, passphrase string) error {
	key := cfg.Responder.Provider.APIKey
	if strings.HasPrefix(key, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(key, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("responder api_key: %w", err)
		}
		cfg.Responder.Provider.APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	salt, data, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	raw, err := hex.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, saltBytes)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
