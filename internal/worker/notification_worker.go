package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/announce-service/internal/events"
	"github.com/spec-kit/announce-service/internal/service"
)

// Forwarder relays published events to an external sink such as an MQTT
// broker.
type Forwarder interface {
	Attach(dispatcher events.Dispatcher)
}

// StartNotificationWorker subscribes the review-chat notices and every
// forwarder to dispatcher. Nil sinks are skipped.
func StartNotificationWorker(dispatcher events.Dispatcher, notifications *service.NotificationService, logger *zap.Logger, forwarders ...Forwarder) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		logger.Warn("no event dispatcher, ticket notifications disabled")
		return
	}
	sinks := 0
	if notifications != nil {
		notifications.RegisterHandlers()
		sinks++
	}
	for _, f := range forwarders {
		if f == nil {
			continue
		}
		f.Attach(dispatcher)
		sinks++
	}
	logger.Info("event sinks registered", zap.Int("sinks", sinks))
}
