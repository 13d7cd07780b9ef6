package config

import (
	"strings"
	"time"

	"go.yaml.in/yaml/v4"
)

// RawConfig represents unparsed YAML structure
type RawConfig struct {
	GitHub     RawGitHubConfig     `yaml:"github"`
	Collection RawCollectionConfig `yaml:"collection"`
	Export     RawExportConfig     `yaml:"export"`
	Settings   RawSettingsConfig   `yaml:"settings"`
}

// RawGitHubConfig defines the API endpoint and the targets to collect
type RawGitHubConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	Repositories  RawList       `yaml:"repositories"`
	Organizations RawList       `yaml:"organizations"`
}

// RawCollectionConfig defines fetch scheduling
type RawCollectionConfig struct {
	Interval         time.Duration  `yaml:"interval"`
	WorkflowsRefresh time.Duration  `yaml:"workflows_refresh"`
	Concurrency      int            `yaml:"concurrency"`
	MaxBackoff       time.Duration  `yaml:"max_backoff"`
	GracePeriod      time.Duration  `yaml:"grace_period"`
	Retry            RawRetryConfig `yaml:"retry"`
}

// RawRetryConfig defines immediate retries of transient API failures
type RawRetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// RawList is a list of strings written either as a YAML sequence or as
// one comma separated string, the form used by GH_REPOS and GH_ORGS.
type RawList []string

// UnmarshalYAML handles both sequence and comma separated string forms
func (l *RawList) UnmarshalYAML(value *yaml.Node) error {
	// Try string form first
	var joined string
	if err := value.Decode(&joined); err == nil {
		*l = splitList(joined)
		return nil
	}

	var items []string
	if err := value.Decode(&items); err != nil {
		return err
	}
	*l = nil
	for _, item := range items {
		*l = append(*l, splitList(item)...)
	}
	return nil
}

// splitList splits on commas and whitespace and drops empty entries.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
