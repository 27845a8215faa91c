// Package config holds the process-wide configuration for botfsmd.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Config is the configuration required to start the bot process.
type Config struct {
	Mode     string // "dev", "demo" or "prod"
	Addr     string // admin debug HTTP bind address
	Port     int    // admin debug HTTP bind port
	UNIXSock string // path to a unix socket, overrides Addr/Port

	Data   string // data directory (used to derive a default SQLite DSN)
	Driver string // "postgres", "sqlite" or "memory"
	DSN    string // database source name; ignored for "memory"

	TelegramBotToken      string // Telegram Bot API token
	TelegramWebhookSecret string // expected value of the Telegram secret-token header

	Version string
}

// IsDev reports whether the process is running outside of "prod" mode.
func (c *Config) IsDev() bool {
	return c.Mode != "prod"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv fills in fields left unset by flags with BOTFSM_* environment
// variables, falling back to defaults.
func (c *Config) FromEnv() {
	if c.Mode == "" {
		c.Mode = getEnvOrDefault("BOTFSM_MODE", "dev")
	}
	if c.Driver == "" {
		c.Driver = getEnvOrDefault("BOTFSM_DRIVER", "memory")
	}
	if c.DSN == "" {
		c.DSN = getEnvOrDefault("BOTFSM_DSN", "")
	}
	if c.Data == "" {
		c.Data = getEnvOrDefault("BOTFSM_DATA", "")
	}
	if c.TelegramBotToken == "" {
		c.TelegramBotToken = getEnvOrDefault("BOTFSM_TELEGRAM_TOKEN", "")
	}
	if c.TelegramWebhookSecret == "" {
		c.TelegramWebhookSecret = getEnvOrDefault("BOTFSM_TELEGRAM_WEBHOOK_SECRET", "")
	}
	if c.Port == 0 {
		c.Port = getEnvOrDefaultInt("BOTFSM_PORT", 28088)
	}
}

func checkDataDir(dataDir string) (string, error) {
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes Mode, ensures the data directory exists for
// file-backed drivers, and derives a default SQLite DSN when none was
// supplied.
func (c *Config) Validate() error {
	if c.Mode != "demo" && c.Mode != "dev" && c.Mode != "prod" {
		c.Mode = "demo"
	}

	if c.Driver == "memory" {
		return nil
	}

	if c.Mode == "prod" && c.Data == "" {
		if runtime.GOOS == "windows" {
			c.Data = filepath.Join(os.Getenv("ProgramData"), "botfsm")
		} else {
			c.Data = "/var/opt/botfsm"
		}
		if _, err := os.Stat(c.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(c.Data, 0770); err != nil {
				slog.Error("failed to create data directory", "data", c.Data, "error", err)
				return err
			}
		}
	}

	if c.Data == "" {
		return nil
	}

	dataDir, err := checkDataDir(c.Data)
	if err != nil {
		slog.Error("failed to check data directory", "data", c.Data, "error", err)
		return err
	}
	c.Data = dataDir

	if c.Driver == "sqlite" && c.DSN == "" {
		c.DSN = filepath.Join(dataDir, fmt.Sprintf("botfsm_%s.db", c.Mode))
	}

	return nil
}
