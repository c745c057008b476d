// Package config loads service configuration from defaults, an optional .env
// file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	OpenAI  OpenAIConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// InterviewModel handles interview turns and must accept image content.
	InterviewModel string
	// ArticleModel handles recommendation generation and article chats.
	ArticleModel string
}

type StorageConfig struct {
	DataDir  string
	MediaDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com/v1",
			InterviewModel: "gpt-4o",
			ArticleModel:   "gpt-4",
		},
		Storage: StorageConfig{
			DataDir:  dataDir,
			MediaDir: filepath.Join(dataDir, "media"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "designdrill-data")
	}
	return filepath.Join(base, "designdrill")
}

// Load reads configuration from defaults, a .env file in the working
// directory (if present), and DESIGNDRILL_* environment variables. The OpenAI
// API key is required; it may also be provided as plain OPENAI_API_KEY.
func Load() (Config, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set DESIGNDRILL_OPENAI_API_KEY (or OPENAI_API_KEY)")
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.OpenAI.APIKey, "DESIGNDRILL_OPENAI_API_KEY", "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "DESIGNDRILL_OPENAI_BASE_URL")
	setString(&cfg.OpenAI.InterviewModel, "DESIGNDRILL_INTERVIEW_MODEL")
	setString(&cfg.OpenAI.ArticleModel, "DESIGNDRILL_ARTICLE_MODEL")
	setString(&cfg.Storage.DataDir, "DESIGNDRILL_DATA_DIR")
	setString(&cfg.Storage.MediaDir, "DESIGNDRILL_MEDIA_DIR")
	setString(&cfg.Log.Level, "DESIGNDRILL_LOG_LEVEL")
	setInt(&cfg.Server.Port, "DESIGNDRILL_SERVER_PORT")

	// Keep media under the data dir when only the latter is overridden.
	if os.Getenv("DESIGNDRILL_DATA_DIR") != "" && os.Getenv("DESIGNDRILL_MEDIA_DIR") == "" {
		cfg.Storage.MediaDir = filepath.Join(cfg.Storage.DataDir, "media")
	}
}

func setString(dst *string, envs ...string) {
	for _, env := range envs {
		if v := os.Getenv(env); v != "" {
			*dst = v
			return
		}
	}
}

func setInt(dst *int, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}
