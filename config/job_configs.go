package config

import (
	"fmt"
	"os"

	"interestbatch/models"

	"gopkg.in/yaml.v3"
)

// JobConfigFile is the on-disk format for seeding job configurations
type JobConfigFile struct {
	JobConfigs []models.JobConfig `yaml:"jobConfigs"`
}

// LoadJobConfigFile reads job configurations from a YAML file.
// Fields are validated by the service layer on import.
func LoadJobConfigFile(path string) ([]*models.JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job config file: %w", err)
	}
	return ParseJobConfigs(data)
}

// ParseJobConfigs decodes YAML job configurations
func ParseJobConfigs(data []byte) ([]*models.JobConfig, error) {
	var file JobConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse job config file: %w", err)
	}
	if len(file.JobConfigs) == 0 {
		return nil, fmt.Errorf("job config file contains no jobConfigs")
	}

	configs := make([]*models.JobConfig, 0, len(file.JobConfigs))
	seen := make(map[models.JobType]bool)
	for i := range file.JobConfigs {
		cfg := file.JobConfigs[i]
		if seen[cfg.JobType] {
			return nil, fmt.Errorf("duplicate job type %s in job config file", cfg.JobType)
		}
		seen[cfg.JobType] = true
		configs = append(configs, &cfg)
	}
	return configs, nil
}
