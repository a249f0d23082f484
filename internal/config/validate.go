package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and consistent values.
// It returns every problem found, not just the first.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Execution.Command) == "" {
		problems = append(problems, "execution.command is required")
	}
	if strings.TrimSpace(c.Test.Command) == "" {
		problems = append(problems, "test.command is required")
	}
	if c.Execution.Timeout < 0 {
		problems = append(problems, "execution.timeout must not be negative")
	}
	if c.Test.Timeout < 0 {
		problems = append(problems, "test.timeout must not be negative")
	}
	if c.Database.Host != "" && c.Database.DBName == "" {
		problems = append(problems, "database.dbname is required when database.host is set")
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		problems = append(problems, "llm.api_key is required when llm.enabled is true")
	}
	switch c.Report.Format {
	case "", "md", "pdf", "html":
	default:
		problems = append(problems, fmt.Sprintf("report.format %q is not one of md, pdf, html", c.Report.Format))
	}
	for name, check := range c.Checks {
		if strings.TrimSpace(check.Command) == "" {
			problems = append(problems, fmt.Sprintf("checks.%s.command is required", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// OptimizerEnabled reports whether the SQL optimization subloop has a target
// database to measure against.
func (c *Config) OptimizerEnabled() bool {
	return c.Database.Host != "" && c.Database.DBName != ""
}
