package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate reports configuration problems that would break the pipeline at
// runtime. It is called automatically by Load.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.ProjectDir) == "" {
		problems = append(problems, "paths.project_dir must not be empty")
	}
	if err := validateURL("llm.base_url", c.LLM.BaseURL); err != nil {
		problems = append(problems, err.Error())
	}
	if err := validateURL("tts.base_url", c.TTS.BaseURL); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Render.Workers > 16 {
		problems = append(problems, "render.workers must be 16 or fewer")
	}
	if c.Render.BatchSize > 64 {
		problems = append(problems, "render.batch_size must be 64 or fewer")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func validateURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s %q is not a valid URL", field, value)
	}
	return nil
}
