// Package builtin contains the built-in sweep modules. Each module registers
// itself with the global module registry from an init function; the package
// is imported for side effects by main.
package builtin

import (
	"fmt"
	"time"
)

// requiredString reads a mandatory string option from a module config
// sub-mapping. Missing or mistyped options fail module construction.
func requiredString(cfg map[string]any, key string) (string, error) {
	raw, ok := cfg[key]
	if !ok {
		return "", fmt.Errorf("missing required config key %q", key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("config key %q must be a non-empty string", key)
	}
	return value, nil
}

func optionalString(cfg map[string]any, key, fallback string) (string, error) {
	raw, ok := cfg[key]
	if !ok {
		return fallback, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("config key %q must be a string", key)
	}
	return value, nil
}

func optionalDuration(cfg map[string]any, key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := cfg[key]
	if !ok {
		return fallback, nil
	}
	value, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("config key %q must be a duration string", key)
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config key %q: %w", key, err)
	}
	return parsed, nil
}

func optionalStringSlice(cfg map[string]any, key string) ([]string, error) {
	raw, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("config key %q must be a list of strings", key)
	}
	values := make([]string, 0, len(list))
	for _, item := range list {
		value, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("config key %q must be a list of strings", key)
		}
		values = append(values, value)
	}
	return values, nil
}
