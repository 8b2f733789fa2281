package store

import (
	"fmt"

	"github.com/vovakirdan/huddle-server/internal/core"
	"github.com/vovakirdan/huddle-server/internal/store/memory"
	"github.com/vovakirdan/huddle-server/internal/store/sqlite"
)

// Driver names a message store backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
)

// Open builds the message store for the configured driver.
func Open(driver Driver, dbPath string) (core.MessageStore, error) {
	switch driver {
	case DriverMemory, "":
		return memory.New(), nil
	case DriverSQLite:
		st, err := sqlite.New(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
