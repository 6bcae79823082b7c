package config

import (
	"fmt"
	"log"
	"strings"
)

// PlaceholderAPIKey is used when no API key is configured. It is publicly known and
// must be overridden in any real deployment.
const PlaceholderAPIKey = "insecure-change-me"

type AuthConfig struct {
	APIKey string `koanf:"apikey"`
}

// String returns a string representation of the auth configuration.
func (c *AuthConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Auth ---\n")
	b.WriteString(fmt.Sprintf("  apikey: %s\n", maskSecret(c.APIKey)))
	return b.String()
}

// UsesPlaceholder reports whether the insecure default key is in effect.
func (c *AuthConfig) UsesPlaceholder() bool {
	return c.APIKey == PlaceholderAPIKey
}

func (c *AuthConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		log.Println("Using placeholder value for auth.apikey")
		c.APIKey = PlaceholderAPIKey
	}
	return nil
}

func maskSecret(secret string) string {
	if secret == "" {
		return "<not configured>"
	}
	if secret == PlaceholderAPIKey {
		return PlaceholderAPIKey + " (placeholder)"
	}
	return "****"
}
