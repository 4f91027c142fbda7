// Package config loads the options of one invocation from GitHub Actions
// inputs (INPUT_* environment variables), command-line flags and an optional
// YAML file.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/cancel-workflow/internal/lifecycle"
	"github.com/dwsmith1983/cancel-workflow/internal/target"
	"github.com/dwsmith1983/cancel-workflow/pkg/types"
)

// EnvPrefix is the prefix GitHub Actions gives to action inputs.
const EnvPrefix = "INPUT"

// Option keys. Each is also read from INPUT_<KEY> and from the config file.
const (
	KeyAccessToken       = "access_token"
	KeyWorkflowID        = "workflow_id"
	KeyIgnoreSHA         = "ignore_sha"
	KeyAllButLatest      = "all_but_latest"
	KeyStatus            = "status"
	KeyDisqualifyingJobs = "disqualifying_jobs"
	KeyPerPage           = "per_page"
	KeyMaxConcurrency    = "max_concurrency"
	KeyBreakerThreshold  = "breaker_threshold"
	KeyAPIURL            = "api_url"
	KeyDryRun            = "dry_run"
	KeyLogLevel          = "log_level"
	KeyConfigFile        = "config"
)

// New returns a viper instance reading INPUT_* variables with the option
// defaults applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyPerPage, types.DefaultPerPage)
	v.SetDefault(KeyMaxConcurrency, types.DefaultMaxConcurrency)
	v.SetDefault(KeyBreakerThreshold, types.DefaultBreakerThreshold)
	v.SetDefault(KeyLogLevel, "info")
	return v
}

// RegisterFlags adds one flag per option to fs and binds it to v.
func RegisterFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("access-token", "", "token used to call the GitHub API")
	fs.String("workflow-id", "", `workflows to scan: "all", or a comma list of ids and file names (default: the current run's workflow)`)
	fs.Bool("ignore-sha", false, "also cancel runs of the same commit")
	fs.Bool("all-but-latest", false, "cancel everything but the newest run, including the current one")
	fs.String("status", "", "comma list of run statuses to cancel (default: any status but completed)")
	fs.String("disqualifying-jobs", "", "JSON list of job names whose in-progress presence prevents cancellation")
	fs.Int("per-page", types.DefaultPerPage, "runs fetched per workflow (1-100)")
	fs.Int("max-concurrency", types.DefaultMaxConcurrency, "maximum in-flight cancel requests")
	fs.Int("breaker-threshold", types.DefaultBreakerThreshold, "consecutive API failures before failing fast (0 disables)")
	fs.String("api-url", "", "GitHub API base URL (default: $GITHUB_API_URL)")
	fs.Bool("dry-run", false, "report what would be cancelled without cancelling")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("config", "", "optional YAML file with option values")

	for _, key := range []string{
		KeyAccessToken, KeyWorkflowID, KeyIgnoreSHA, KeyAllButLatest, KeyStatus,
		KeyDisqualifyingJobs, KeyPerPage, KeyMaxConcurrency, KeyBreakerThreshold,
		KeyAPIURL, KeyDryRun, KeyLogLevel, KeyConfigFile,
	} {
		name := strings.ReplaceAll(key, "_", "-")
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads and validates the options held by v. getenv supplies the
// runner environment used for fallbacks such as GITHUB_API_URL. Every
// validation failure is a *types.ConfigError.
func Load(v *viper.Viper, getenv func(string) string) (*types.Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, &types.ConfigError{Field: KeyConfigFile, Reason: err.Error()}
		}
	}

	cfg := &types.Config{
		AccessToken:      strings.TrimSpace(v.GetString(KeyAccessToken)),
		IgnoreSHA:        v.GetBool(KeyIgnoreSHA),
		AllButLatest:     v.GetBool(KeyAllButLatest),
		PerPage:          v.GetInt(KeyPerPage),
		MaxConcurrency:   v.GetInt(KeyMaxConcurrency),
		BreakerThreshold: v.GetInt(KeyBreakerThreshold),
		APIURL:           strings.TrimSpace(v.GetString(KeyAPIURL)),
		DryRun:           v.GetBool(KeyDryRun),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
	}

	if cfg.AccessToken == "" {
		return nil, &types.ConfigError{Field: KeyAccessToken, Reason: "is required"}
	}

	sel, err := target.ParseSelector(listString(v.Get(KeyWorkflowID)))
	if err != nil {
		return nil, err
	}
	cfg.Workflows = sel

	cfg.Statuses = lifecycle.ParseStatuses(listString(v.Get(KeyStatus)))

	jobs, err := parseJobNames(v.Get(KeyDisqualifyingJobs))
	if err != nil {
		return nil, err
	}
	cfg.DisqualifyingJobs = jobs

	if cfg.APIURL == "" {
		cfg.APIURL = getenv("GITHUB_API_URL")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = types.DefaultAPIURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *types.Config) error {
	if cfg.PerPage < 1 || cfg.PerPage > 100 {
		return &types.ConfigError{Field: KeyPerPage, Reason: fmt.Sprintf("must be between 1 and 100, got %d", cfg.PerPage)}
	}
	if cfg.MaxConcurrency < 1 {
		return &types.ConfigError{Field: KeyMaxConcurrency, Reason: fmt.Sprintf("must be at least 1, got %d", cfg.MaxConcurrency)}
	}
	if cfg.BreakerThreshold < 0 {
		return &types.ConfigError{Field: KeyBreakerThreshold, Reason: fmt.Sprintf("must not be negative, got %d", cfg.BreakerThreshold)}
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return &types.ConfigError{Field: KeyLogLevel, Reason: err.Error()}
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// listString flattens a YAML list into a comma list so that file values and
// INPUT_* strings parse the same way.
func listString(raw interface{}) string {
	switch val := raw.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}

// parseJobNames decodes disqualifying_jobs. A string must hold a JSON or
// YAML flow list; a list from the config file must hold only strings.
func parseJobNames(raw interface{}) ([]string, error) {
	bad := func(reason string) error {
		return &types.ConfigError{Field: KeyDisqualifyingJobs, Reason: reason}
	}

	switch val := raw.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		names := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, bad(fmt.Sprintf("expected a list of job names, found %T", item))
			}
			names = append(names, s)
		}
		return compact(names), nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(val), &doc); err != nil {
			return nil, bad(err.Error())
		}
		if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.SequenceNode {
			return nil, bad("expected a list of job names")
		}
		var names []string
		if err := doc.Content[0].Decode(&names); err != nil {
			return nil, bad(err.Error())
		}
		return compact(names), nil
	default:
		return nil, bad("expected a list of job names")
	}
}

func compact(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
