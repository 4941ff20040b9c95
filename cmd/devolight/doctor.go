package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cheerhou/DevoLight/internal/infra/config"
	"github.com/cheerhou/DevoLight/internal/usecase/multiagent"
	"github.com/cheerhou/DevoLight/internal/usecase/scheduling"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run health checks on the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath := opts.path()
			cfg, cfgErr := config.Load(cfgPath)

			checks := []Check{
				{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
				{Name: "Responder", Fn: checkResponder},
				{Name: "Prompts", Fn: checkPrompts},
				{Name: "Router", Fn: checkRouter},
				{Name: "Audit store", Fn: checkAuditStore},
				{Name: "Scheduler", Fn: checkScheduler},
			}
			if !offline {
				checks = append(checks, Check{Name: "API connectivity", Fn: checkConnectivity})
			}
			return runChecks(cmd.OutOrStdout(), cfg, checks)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip network checks")
	return cmd
}

func runChecks(w io.Writer, cfg *config.Config, checks []Check) error {
	fmt.Fprintln(w, "devolight doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and loads. A missing
// file is only a warning: defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fmt.Sprintf("Check %s syntax and permissions (0600)", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkResponder reports which backend will write agent replies.
func checkResponder(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	r := cfg.Responder
	switch {
	case r.Type == "stub":
		return CheckResult{Status: StatusWarn, Message: "stub responder configured; replies are placeholders"}
	case r.Provider.APIKey == "":
		return CheckResult{
			Status:  StatusWarn,
			Message: "no API key; falling back to the stub responder",
			Fix:     "Set DEVO_CLAUDE_API_KEY or responder.provider.api_key",
		}
	default:
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s model %s at %s", r.Provider.Name, r.Provider.Model, r.Provider.BaseURL),
		}
	}
}

// checkPrompts verifies the prompt override directory and lists which
// personas it overrides.
func checkPrompts(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	dir := cfg.Responder.PromptsDir
	if dir == "" {
		return CheckResult{Status: StatusPass, Message: "built-in prompts"}
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("prompts dir %s is not a readable directory", dir),
			Fix:     "Create the directory or unset responder.prompts_dir",
		}
	}
	var overridden []string
	for _, a := range multiagent.DefaultAgents() {
		if _, err := os.Stat(filepath.Join(dir, a.Role+".md")); err == nil {
			overridden = append(overridden, a.Role)
		}
	}
	if len(overridden) == 0 {
		return CheckResult{Status: StatusWarn, Message: fmt.Sprintf("no <Role>.md files in %s; built-in prompts used", dir)}
	}
	return CheckResult{Status: StatusPass, Message: "overrides for " + strings.Join(overridden, ", ")}
}

// checkRouter verifies the fallback agent resolves in the registry.
func checkRouter(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	reg := multiagent.DefaultRegistry()
	if _, ok := reg.Resolve(cfg.Router.FallbackAgent); !ok {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("fallback agent %q is not registered", cfg.Router.FallbackAgent),
			Fix:     "Use one of: " + strings.Join(reg.Keys(), ", "),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d agents, fallback %s, top %d above %.2f", reg.Len(), cfg.Router.FallbackAgent, cfg.Router.MaxSelected, cfg.Router.MinScore),
	}
}

// checkAuditStore verifies the audit database directory is writable.
func checkAuditStore(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if !cfg.Audit.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}

	dir := filepath.Dir(cfg.Audit.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not writable: %v", dir, err),
			Fix:     "Fix directory permissions or change audit.path",
		}
	}
	probe.Close()
	os.Remove(probe.Name())
	return CheckResult{Status: StatusPass, Message: "writable at " + cfg.Audit.Path}
}

// checkScheduler verifies every task schedule parses.
func checkScheduler(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if !cfg.Scheduler.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	var bad []string
	for _, t := range cfg.Scheduler.Tasks {
		if _, err := scheduling.ParseSchedule(t.Schedule); err != nil {
			bad = append(bad, fmt.Sprintf("%s (%q)", t.Name, t.Schedule))
		}
	}
	if len(bad) > 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: "invalid schedules: " + strings.Join(bad, ", "),
			Fix:     "Use a cron expression (\"*/10 * * * *\", \"@daily\") or a duration (\"10m\")",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%d task(s)", len(cfg.Scheduler.Tasks))}
}

// checkConnectivity tests whether the Messages API host is reachable.
func checkConnectivity(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if cfg.Responder.Type == "stub" || cfg.Responder.Provider.APIKey == "" {
		return CheckResult{Status: StatusWarn, Message: "skipped: no API in use"}
	}

	endpoint := strings.TrimRight(cfg.Responder.Provider.BaseURL, "/")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your network, proxy settings and responder.provider.base_url",
		}
	}
	resp.Body.Close()

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", endpoint, latency.Milliseconds()),
	}
}
