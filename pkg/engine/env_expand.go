package engine

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// Pattern for ${VAR:-default} syntax (must come before ${VAR} pattern)
	envWithDefaultPattern = regexp.MustCompile(`\$\{([^:}]+):-([^}]*)\}`)
	// Pattern for ${VAR} syntax (required)
	envRequiredPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// ExpandEnv expands environment variable references in a string value.
// Supports:
//   - ${VAR} - required variable (error if not set)
//   - ${VAR:-default} - optional with default value
//
// Nested defaults are expanded recursively.
func ExpandEnv(value string) (string, error) {
	result := value

	for range 10 {
		prev := result

		result = envWithDefaultPattern.ReplaceAllStringFunc(result, func(match string) string {
			sub := envWithDefaultPattern.FindStringSubmatch(match)
			if val, ok := os.LookupEnv(sub[1]); ok && val != "" {
				return val
			}
			return sub[2]
		})

		var missing []string
		result = envRequiredPattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.Contains(match, ":-") {
				return match
			}
			sub := envRequiredPattern.FindStringSubmatch(match)
			val, ok := os.LookupEnv(sub[1])
			if !ok || val == "" {
				missing = append(missing, match)
				return match
			}
			return val
		})

		if len(missing) > 0 {
			return "", fmt.Errorf("required environment variable(s) not set: %v", missing)
		}
		if result == prev {
			break
		}
	}

	return result, nil
}
