// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
)

// DotEnvFileName is the optional environment file in the base directory.
const DotEnvFileName = ".env"

// LoadDotEnv loads <baseDir>/.env into the process environment. Variables
// that are already set win. A missing file is not an error. It returns the
// path that was loaded, or "" when there was none.
func LoadDotEnv(baseDir string) (string, error) {
	path := filepath.Join(baseDir, DotEnvFileName)
	if !fileExists(path) {
		return "", nil
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("loading %s: %w", path, err)
	}
	return path, nil
}
