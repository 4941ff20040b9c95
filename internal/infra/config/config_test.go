package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Router.SequenceStep != 2*time.Second {
		t.Errorf("SequenceStep = %v, want 2s", cfg.Router.SequenceStep)
	}
	if cfg.Router.MaxSelected != 2 || cfg.Router.MinScore != 0.3 {
		t.Errorf("selection = %d/%v, want 2/0.3", cfg.Router.MaxSelected, cfg.Router.MinScore)
	}
	if cfg.Router.FallbackAgent != "antioch" || cfg.Router.FallbackConfidence != 0.5 {
		t.Errorf("fallback = %q/%v", cfg.Router.FallbackAgent, cfg.Router.FallbackConfidence)
	}
	if cfg.Router.Weights.Companionship != 0.5 {
		t.Errorf("Weights.Companionship = %v, want 0.5", cfg.Router.Weights.Companionship)
	}
	if cfg.Responder.Provider.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", cfg.Responder.Provider.Model)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want 1 MiB", cfg.Server.MaxBodyBytes)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.MaxSelected != 2 {
		t.Errorf("expected defaults, got MaxSelected=%d", cfg.Router.MaxSelected)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
router:
  sequence_step: 500ms
  max_selected: 3
  weights:
    keyword_hit: 0.25
responder:
  type: anthropic
  provider:
    api_key: "test-key"
    model: "claude-test"
server:
  addr: "127.0.0.1:9090"
  cors_origins: ["https://devo.example"]
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.SequenceStep != 500*time.Millisecond {
		t.Errorf("SequenceStep = %v", cfg.Router.SequenceStep)
	}
	if cfg.Router.MaxSelected != 3 {
		t.Errorf("MaxSelected = %d, want 3", cfg.Router.MaxSelected)
	}
	if cfg.Router.Weights.KeywordHit != 0.25 {
		t.Errorf("KeywordHit = %v", cfg.Router.Weights.KeywordHit)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Router.Weights.HistoricalCue != 0.4 {
		t.Errorf("HistoricalCue = %v, want default 0.4", cfg.Router.Weights.HistoricalCue)
	}
	if cfg.Responder.Provider.APIKey != "test-key" || cfg.Responder.Provider.Model != "claude-test" {
		t.Errorf("Provider = %+v", cfg.Responder.Provider)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" || len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEVOLIGHT_LOGGER_LEVEL", "debug")
	t.Setenv("DEVOLIGHT_SERVER_ADDR", ":9999")
	t.Setenv("DEVOLIGHT_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DEVOLIGHT_SEQUENCE_STEP", "1s")
	t.Setenv("DEVOLIGHT_AUDIT_ENABLED", "true")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Router.SequenceStep != time.Second {
		t.Errorf("SequenceStep = %v", cfg.Router.SequenceStep)
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled should be true")
	}
}

func TestApplyEnvOverridesClaude(t *testing.T) {
	t.Setenv("DEVO_CLAUDE_API_KEY", "sk-env")
	t.Setenv("DEVO_CLAUDE_BASE_URL", "https://proxy.example")
	t.Setenv("DEVO_CLAUDE_MODEL", "claude-x")
	t.Setenv("DEVO_CLAUDE_MAX_TOKENS", "2048")
	t.Setenv("DEVO_CLAUDE_TEMPERATURE", "0.7")
	t.Setenv("DEVO_CLAUDE_TIMEOUT", "45.5")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	p := cfg.Responder.Provider
	if p.APIKey != "sk-env" || p.BaseURL != "https://proxy.example" || p.Model != "claude-x" {
		t.Errorf("Provider = %+v", p)
	}
	if p.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d", p.MaxTokens)
	}
	if p.Temperature != 0.7 {
		t.Errorf("Temperature = %v", p.Temperature)
	}
	if p.RespTimeout != 45500*time.Millisecond {
		t.Errorf("RespTimeout = %v", p.RespTimeout)
	}
}

func TestApplyEnvOverridesClaudeTimeoutDuration(t *testing.T) {
	t.Setenv("DEVO_CLAUDE_TIMEOUT", "2m")
	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if cfg.Responder.Provider.RespTimeout != 2*time.Minute {
		t.Errorf("RespTimeout = %v", cfg.Responder.Provider.RespTimeout)
	}
}

func TestApplyEnvOverridesIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("DEVO_CLAUDE_MAX_TOKENS", "lots")
	t.Setenv("DEVO_CLAUDE_TEMPERATURE", "-1")
	t.Setenv("DEVOLIGHT_SESSION_TTL", "forever")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Responder.Provider.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want default", cfg.Responder.Provider.MaxTokens)
	}
	if cfg.Responder.Provider.Temperature != 0 {
		t.Errorf("Temperature = %v, want default", cfg.Responder.Provider.Temperature)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("Session.TTL = %v, want default", cfg.Session.TTL)
	}
}

func TestApplyEnvOverridesTracer(t *testing.T) {
	t.Setenv("DEVOLIGHT_TRACER_ENABLED", "true")
	t.Setenv("DEVOLIGHT_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if !cfg.Tracer.Enabled || cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer = %+v", cfg.Tracer)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "sk-abcdef123456"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecryptValue(encrypted, "wrong-pass"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptValueMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "abcdef"},
		{"bad salt", "zz:abcd"},
		{"bad ciphertext", "abcd:zz"},
		{"too short", "00112233445566778899aabbccddeeff:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecryptValue(tt.input, "pass"); err == nil {
				t.Errorf("DecryptValue(%q) should fail", tt.input)
			}
		})
	}
}

func TestDecryptSecrets(t *testing.T) {
	passphrase := "test-config-key"
	encrypted, err := EncryptValue("sk-secret123456", passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	cfg := Defaults()
	cfg.Responder.Provider.APIKey = "enc:" + encrypted
	if err := decryptSecrets(cfg, passphrase); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}
	if cfg.Responder.Provider.APIKey != "sk-secret123456" {
		t.Errorf("APIKey = %q", cfg.Responder.Provider.APIKey)
	}

	cfg.Responder.Provider.APIKey = "sk-plain-key"
	if err := decryptSecrets(cfg, passphrase); err != nil {
		t.Fatalf("decryptSecrets plain: %v", err)
	}
	if cfg.Responder.Provider.APIKey != "sk-plain-key" {
		t.Errorf("plain APIKey should remain unchanged")
	}

	cfg.Responder.Provider.APIKey = "enc:notvalidhex"
	if err := decryptSecrets(cfg, passphrase); err == nil {
		t.Error("expected error for invalid ciphertext")
	}
}

func TestLoadWithConfigKey(t *testing.T) {
	passphrase := "test-load-key"
	encrypted, err := EncryptValue("sk-loadtest", passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "responder:\n  provider:\n    api_key: \"enc:" + encrypted + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DEVOLIGHT_CONFIG_KEY", passphrase)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Responder.Provider.APIKey != "sk-loadtest" {
		t.Errorf("APIKey = %q", cfg.Responder.Provider.APIKey)
	}
}

func TestLoadDecryptSecretsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("responder:\n  provider:\n    api_key: \"enc:bad\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEVOLIGHT_CONFIG_KEY", "pass")
	if _, err := Load(path); err == nil {
		t.Error("expected decrypt error")
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insecure.yaml")
	if err := os.WriteFile(path, []byte("router:\n  max_selected: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for insecure permissions")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("router: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("router:\n  max_selected: -1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestValidatePermissions(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		mode    os.FileMode
		wantErr bool
	}{
		{0600, false},
		{0644, false},
		{0660, true},
		{0666, true},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.mode.String())
		if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, tt.mode); err != nil {
			t.Fatal(err)
		}
		err := validatePermissions(path)
		if (err != nil) != tt.wantErr {
			t.Errorf("mode %o: err = %v, wantErr %v", tt.mode, err, tt.wantErr)
		}
	}
}

func TestValidatePermissionsStatError(t *testing.T) {
	if err := validatePermissions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected stat error")
	}
}
