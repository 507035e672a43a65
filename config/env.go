package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvAPIURL         = "TRADEPOSTER_API_URL"
	EnvTelegramToken  = "TRADEPOSTER_TELEGRAM_TOKEN"
	EnvTelegramChatID = "TRADEPOSTER_TELEGRAM_CHAT_ID"
)

// LoadDotEnv loads variables from the given .env files (default ".env")
// into the process environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Upload.APIURL = v
	}
	if v := os.Getenv(EnvTelegramToken); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(EnvTelegramChatID); v != "" {
		c.Telegram.ChatID = v
	}
}
