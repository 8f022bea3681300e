// internal/config/database.go
package config

import (
	"fmt"
)

// DSN returns the connection string for the configured driver.

func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Database + "?_foreign_keys=on"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}
