// internal/services/common.go
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/events"
)

// Sender delivers a payload over the transport.
type Sender interface {
	Send(ctx context.Context, from, to, payload string) (*daemon.SendResult, error)
}

// Emitter re-emits persisted entities to secondary listeners.
type Emitter interface {
	Emit(e events.Event) bool
}

type noopEmitter struct{}

func (noopEmitter) Emit(events.Event) bool { return false }

// lookupError translates gorm's not-found into a typed error.
func lookupError(err error, resource string, key interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource, key)
	}
	return fmt.Errorf("failed to load %s: %w", resource, err)
}
