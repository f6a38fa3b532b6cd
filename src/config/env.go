package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// Env reads the configured env file. A missing default .env is not an error;
// a missing file named explicitly by env_file is.
func (c *Config) Env() (map[string]string, error) {
	name := c.EnvFile
	if name == "" {
		name = defaultEnvFile
	}
	if !filepath.IsAbs(name) && c.Dir != "" {
		name = filepath.Join(c.Dir, name)
	}

	env, err := godotenv.Read(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && c.EnvFile == "" {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", name, err)
	}
	return env, nil
}

// Expand replaces ${VAR} and $VAR in s, looking in env first and then in the
// process environment. Unknown variables expand to the empty string.
func Expand(s string, env map[string]string) string {
	return os.Expand(s, func(key string) string {
		if v, ok := env[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}
