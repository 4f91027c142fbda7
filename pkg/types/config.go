package types

// Defaults for the tunable options.
const (
	DefaultPerPage          = 100
	DefaultMaxConcurrency   = 8
	DefaultBreakerThreshold = 5
	DefaultAPIURL           = "https://api.github.com/"
)

// Config is the validated user configuration of one invocation.
type Config struct {
	AccessToken string           `yaml:"-" json:"-"`
	Workflows   WorkflowSelector `yaml:"-" json:"workflows"`
	IgnoreSHA   bool             `yaml:"ignore_sha" json:"ignoreSha"`
	// AllButLatest moves the cutoff to the newest fetched run and allows the
	// current run itself to be cancelled.
	AllButLatest bool `yaml:"all_but_latest" json:"allButLatest"`
	// Statuses overrides the default "not completed" predicate when non-empty.
	Statuses          []RunStatus `yaml:"-" json:"statuses,omitempty"`
	DisqualifyingJobs []string    `yaml:"-" json:"disqualifyingJobs,omitempty"`

	PerPage          int    `yaml:"per_page" json:"perPage"`
	MaxConcurrency   int    `yaml:"max_concurrency" json:"maxConcurrency"`
	BreakerThreshold int    `yaml:"breaker_threshold" json:"breakerThreshold"`
	APIURL           string `yaml:"api_url" json:"apiUrl"`
	DryRun           bool   `yaml:"dry_run" json:"dryRun"`
	LogLevel         string `yaml:"log_level" json:"logLevel"`
}
