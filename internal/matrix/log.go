// ABOUTME: Dry-run deliverer that logs messages instead of sending them
// ABOUTME: Lets feeds be exercised end to end without a homeserver

package matrix

import (
	"context"
	"log/slog"

	"github.com/2389/coven-feeds/internal/render"
)

// LogDeliverer logs messages instead of sending them. Used for dry runs.
type LogDeliverer struct {
	logger *slog.Logger
}

// NewLogDeliverer creates a LogDeliverer writing to logger.
func NewLogDeliverer(logger *slog.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger.With("component", "dry-run")}
}

// Deliver logs the plain-text body that would be posted to roomID.
func (d *LogDeliverer) Deliver(_ context.Context, roomID string, msg render.Message) error {
	d.logger.Info("would post", "room", roomID, "body", msg.Body)
	return nil
}

// Notify logs the notice that would be sent to roomID.
func (d *LogDeliverer) Notify(_ context.Context, roomID, text string) error {
	d.logger.Info("would notify", "room", roomID, "text", text)
	return nil
}
