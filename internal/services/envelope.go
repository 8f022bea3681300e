// internal/services/envelope.go
package services

import (
	"context"
	"fmt"

	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/message"
)

// send wraps payload in an envelope and hands it to the transport.
func send(ctx context.Context, sender Sender, version, from, to string, envelope *message.MarketplaceMessage) (*daemon.SendResult, error) {
	envelope.Version = version
	payload, err := message.Encode(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return sender.Send(ctx, from, to, payload)
}
