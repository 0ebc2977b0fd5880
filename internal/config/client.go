package config

import (
	"os"

	"github.com/joho/godotenv"
)

// ClientConfig holds the collaborative client defaults; command-line flags override it
type ClientConfig struct {
	RelayURL string
	APIURL   string
	Username string
}

// LoadClient reads an optional .env file and then AETHER_* variables
func LoadClient() ClientConfig {
	_ = godotenv.Load()

	cfg := ClientConfig{
		RelayURL: "ws://localhost:8080/ws",
		APIURL:   "http://localhost:8080",
	}
	if v := os.Getenv("AETHER_RELAY_URL"); v != "" {
		cfg.RelayURL = v
	}
	if v := os.Getenv("AETHER_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("AETHER_USERNAME"); v != "" {
		cfg.Username = v
	}
	return cfg
}
