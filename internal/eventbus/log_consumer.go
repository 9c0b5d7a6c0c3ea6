package eventbus

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/matthewbaird/pvbridge/internal/uistate"
)

// LogConsumer logs all UI events for observability.
type LogConsumer struct {
	logger logr.Logger
}

func NewLogConsumer(logger logr.Logger) *LogConsumer {
	return &LogConsumer{logger: logger.WithName("events")}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt uistate.Event) error {
	if evt.Kind == uistate.StateEvent {
		c.logger.V(4).Info("State changed", "name", evt.Name, "value", evt.Value)
		return nil
	}
	c.logger.V(2).Info("Notification", "name", evt.Name)
	return nil
}
