package config

import (
	"fmt"
	"strings"
)

// Validate performs syntactic validation on raw config
func Validate(raw *RawConfig) error {
	return validateRawSyntax(raw)
}

// validateRawSyntax performs basic syntactic validation on raw config
func validateRawSyntax(raw *RawConfig) error {
	if len(raw.GitHub.Repositories) == 0 && len(raw.GitHub.Organizations) == 0 {
		return fmt.Errorf("no targets: configure github.repositories or github.organizations")
	}

	for i, repo := range raw.GitHub.Repositories {
		if strings.Count(repo, "/") != 1 {
			return fmt.Errorf("repository at index %d: %q must have the form owner/name", i, repo)
		}
	}
	for i, org := range raw.GitHub.Organizations {
		if strings.Contains(org, "/") {
			return fmt.Errorf("organization at index %d: %q must be a bare login", i, org)
		}
	}

	if raw.Collection.Concurrency < 0 {
		return fmt.Errorf("collection concurrency cannot be negative")
	}
	if raw.Collection.Retry.Attempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}

	return nil
}
