package runtime

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads a local .env file (or ENV_FILE) when present.
// Values already set in the process environment win.
func LoadDotEnv(logger *slog.Logger) {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil && logger != nil {
		logger.Warn("failed to load env file", "path", path, "err", err)
	}
}
