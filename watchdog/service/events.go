package service

import (
	"go.uber.org/zap"

	"github.com/reservelabs/reserve-watchdog/types"
)

// EventSink receives engine events synchronously, inside the call whose
// state transition they describe. Sinks must not call back into the
// engine.
type EventSink interface {
	HandleEvent(ev types.Event)
}

// Subscribe registers a sink for all subsequent events. Not safe to call
// concurrently with engine operations; wire sinks up before serving.
func (e *Engine) Subscribe(sink EventSink) {
	e.sinks = append(e.sinks, sink)
}

func (e *Engine) emit(ev types.Event) {
	e.logger.Info("event", zap.String("name", ev.EventName()), zap.Any("event", ev))
	for _, sink := range e.sinks {
		sink.HandleEvent(ev)
	}
}
