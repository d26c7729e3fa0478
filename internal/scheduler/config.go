package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/sellerflow/internal/config"
)

const (
	JobApprovalExpiry = "approval_expiry"
	JobSLAWarning     = "sla_warning"
	JobQuoteValidity  = "quote_validity"
	JobOutboxDispatch = "outbox_dispatch"
)

// Config controls scheduler intervals and which sweeps run in this process.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	// EnabledJobs limits the process to the named jobs. Empty runs all of them.
	EnabledJobs []string
	Disabled    bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

// ProvideConfig derives the scheduler config from the application config.
func ProvideConfig(cfg config.Config) Config {
	out := Config{
		RunInterval: cfg.SchedulerInterval,
		Disabled:    !cfg.SchedulerEnabled,
	}
	for _, job := range strings.Split(cfg.SchedulerJobs, ",") {
		if job = strings.TrimSpace(job); job != "" {
			out.EnabledJobs = append(out.EnabledJobs, job)
		}
	}
	return out.withDefaults()
}
