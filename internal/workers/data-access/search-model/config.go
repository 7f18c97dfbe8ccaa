// internal/workers/data-access/search-model/config.go
package searchmodel

import (
	"fmt"
	"time"

	"searchmodel/internal/common/config"
)

// Config is the worker config of one task type. MaxRetries caps the retries
// granted to a failed job.
type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	MaxRetries    int
}

// LoadConfig reads the worker section for taskType, falling back to defaults.
func LoadConfig(appCfg *config.Config, taskType string) *Config {
	if appCfg == nil {
		return &Config{
			Enabled:       true,
			MaxJobsActive: 5,
			Timeout:       30 * time.Second,
			MaxRetries:    3,
		}
	}

	wc := config.GetWorkerConfig(appCfg, taskType)
	return &Config{
		Enabled:       wc.Enabled,
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       config.GetDuration(wc.Timeout),
		MaxRetries:    wc.MaxRetries,
	}
}

// LoadConfigs reads the worker section of every task type served here.
func LoadConfigs(appCfg *config.Config) map[string]*Config {
	configs := make(map[string]*Config, len(TaskTypes))
	for _, taskType := range TaskTypes {
		configs[taskType] = LoadConfig(appCfg, taskType)
	}
	return configs
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max jobs active must be positive")
	}
	return nil
}
