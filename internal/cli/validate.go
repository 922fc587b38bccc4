package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ensureLocalDir checks that path is an existing directory, creating it
// with parents when create is set
func ensureLocalDir(path string, create bool) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if create {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("local path does not exist: %s (use --create-local to create it)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to access local path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local path exists but is not a directory: %s", path)
	}
	return nil
}

// parseByteSize parses a human byte size such as "512K", "10M" or
// "1G". A bare number counts bytes, the empty string means zero.
func parseByteSize(input string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	s = strings.TrimSuffix(s, "B")
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "T"):
		multiplier = 1 << 40
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid size %q (examples: 500K, 10M, 1G)", input)
	}
	return value * multiplier, nil
}
