package config

import (
	"fmt"
	"log"
	"strings"
)

const defaultSellMaxRetries = 5

type SellConfig struct {
	MaxRetries int `koanf:"maxretries"`
}

// String returns a string representation of the sell configuration.
func (c *SellConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Sell ---\n")
	b.WriteString(fmt.Sprintf("  maxretries: %d\n", c.MaxRetries))
	return b.String()
}

func (c *SellConfig) Validate() error {
	if c.MaxRetries == 0 {
		log.Println("Using default value for sell.maxretries")
		c.MaxRetries = defaultSellMaxRetries
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("sell.maxretries must not be negative")
	}
	return nil
}
