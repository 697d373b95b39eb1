package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnvPrecedence exports .env.local then .env from dir. A variable that
// already holds a non-blank value is never replaced, so the effective order
// is env > .env.local > .env.
func loadDotEnvPrecedence(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		values, err := godotenv.Read(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		for k, v := range values {
			if existing, exists := os.LookupEnv(k); exists && strings.TrimSpace(existing) != "" {
				continue
			}
			if setErr := os.Setenv(k, v); setErr != nil {
				return setErr
			}
		}
	}
	return nil
}

// readDotFile returns the key-value pairs of a dotenv file, or nil when it
// cannot be read.
func readDotFile(path string) map[string]string {
	vals, err := godotenv.Read(path)
	if err != nil {
		return nil
	}
	return vals
}
