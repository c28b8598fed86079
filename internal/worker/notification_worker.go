package worker

import (
	"github.com/spec-kit/helpdesk/internal/events"
)

// Subscriber attaches its handlers to a dispatcher.
type Subscriber interface {
	Register(dispatcher events.Dispatcher)
}

// StartNotificationWorker registers every non-nil subscriber.
func StartNotificationWorker(dispatcher events.Dispatcher, subscribers ...Subscriber) {
	if dispatcher == nil {
		return
	}
	for _, s := range subscribers {
		if s != nil {
			s.Register(dispatcher)
		}
	}
}
