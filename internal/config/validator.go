package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates the Config using struct tags plus the cross-field
// rules below. Returns an error describing every violation found.
func (c *Config) Validate() error {
	if err := c.validateRateLimitOverrides(); err != nil {
		return err
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	if err := c.validateUpstreamNames(); err != nil {
		return err
	}
	return nil
}

// validateRateLimitOverrides ensures every override pattern is non-empty
// and that enabling rate limiting without a default quota policy still
// leaves overrides resolvable on their own.
func (c *Config) validateRateLimitOverrides() error {
	if !c.RateLimit.Enabled {
		return nil
	}
	if c.RateLimit.DefaultQuotaPolicy == nil && len(c.RateLimit.Overrides) == 0 {
		return errors.New("rate_limit: enabled but neither default_quota_policy nor overrides is set")
	}
	for i, o := range c.RateLimit.Overrides {
		if o.Pattern == "" {
			return fmt.Errorf("rate_limit.overrides[%d]: pattern must not be empty", i)
		}
	}
	return nil
}

// validateUpstreamNames ensures every configured gateway upstream has a
// unique name, since the gateway registry indexes upstreams by name.
func (c *Config) validateUpstreamNames() error {
	seen := make(map[string]bool, len(c.Gateway.Upstreams))
	for i, u := range c.Gateway.Upstreams {
		if seen[u.Name] {
			return fmt.Errorf("gateway.upstreams[%d]: duplicate upstream name %q", i, u.Name)
		}
		seen[u.Name] = true
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s: failed %q validation", e.Namespace(), e.Tag()))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}
