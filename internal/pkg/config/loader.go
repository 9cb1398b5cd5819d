// Package config provides fail-open loaders and validators for environment
// based configuration. Loaders never return errors: an invalid value falls
// back to the default and the result carries a warning describing why.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigLoadResult is the outcome of loading one configuration value.
//
// Value holds either the parsed environment value or the default. Warnings has
// one entry per fallback, and FallbackApplied reports whether the default was
// used because the environment value was rejected.
//
// Example:
//
//	result := LoadEnvDuration("REFRESH_TTL", 30*time.Minute, ValidatePositiveDuration)
//	if result.FallbackApplied {
//	    for _, warning := range result.Warnings {
//	        logger.Warn("configuration fallback", slog.String("warning", warning))
//	    }
//	}
//	ttl := result.Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString returns the environment value or defaultValue when unset.
// No validation is applied.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and validates it. An unset or empty
// variable yields the default without a warning; a value rejected by the
// validator yields the default with a warning.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	return load(envKey, defaultValue, func(raw string) (string, error) { return raw, nil }, validator,
		func(v string) string { return v })
}

// LoadEnvDuration loads a Go duration string ("30s", "5m", "1h30m").
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	return load(envKey, defaultValue, time.ParseDuration, validator,
		func(v time.Duration) string { return v.String() })
}

// LoadEnvInt loads a base-10 integer. Surrounding whitespace is ignored,
// decimals are rejected.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	parse := func(raw string) (int, error) {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return v, nil
	}
	return load(envKey, defaultValue, parse, validator,
		func(v int) string { return strconv.Itoa(v) })
}

// LoadEnvBool loads a boolean. Accepted values are 1/t/T/true/TRUE/True and
// 0/f/F/false/FALSE/False.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	parse := func(raw string) (bool, error) {
		switch raw {
		case "1", "t", "T", "true", "TRUE", "True":
			return true, nil
		case "0", "f", "F", "false", "FALSE", "False":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
	}
	return load(envKey, defaultValue, parse, nil, strconv.FormatBool)
}

// LoadEnvList loads a comma separated list, trimming blanks and dropping
// empty entries. An unset variable yields the default.
func LoadEnvList(envKey string, defaultValue []string) []string {
	raw := os.Getenv(envKey)
	if raw == "" {
		return defaultValue
	}
	out := make([]string, 0, strings.Count(raw, ",")+1)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func load[T any](
	envKey string,
	defaultValue T,
	parse func(string) (T, error),
	validator func(T) error,
	format func(T) string,
) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	fallback := func(reason error) ConfigLoadResult {
		return ConfigLoadResult{
			Value: defaultValue,
			Warnings: []string{fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%s'",
				envKey, raw, reason, format(defaultValue),
			)},
			FallbackApplied: true,
		}
	}

	parsed, err := parse(raw)
	if err != nil {
		return fallback(err)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallback(err)
		}
	}
	return ConfigLoadResult{Value: parsed}
}
