package config

import (
	"fmt"
	"log"
	"strings"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type StorageConfig struct {
	Driver string `koanf:"driver"`
}

// String returns a string representation of the storage configuration.
func (c *StorageConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	return b.String()
}

func (c *StorageConfig) Validate() error {
	if c.Driver == "" {
		log.Println("Using default value for storage.driver")
		c.Driver = StorageDriverPostgres
	}
	switch c.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
		return nil
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Driver)
	}
}
