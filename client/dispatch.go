package client

import (
	"go.uber.org/zap"

	"github.com/luma/argus/protocol"
)

// Dispatcher decodes unsolicited 'M' frames into typed events, records
// them in the snapshot, and invokes registered handlers.
type Dispatcher struct {
	registry *Registry
	snapshot *Snapshot
	log      *zap.Logger
}

func NewDispatcher(registry *Registry, snapshot *Snapshot, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		snapshot: snapshot,
		log:      log,
	}
}

// Dispatch handles one message frame. Handlers run synchronously and in
// registration order; a handler failure is isolated and logged without
// affecting later handlers or later frames.
func (d *Dispatcher) Dispatch(f *protocol.Frame) {
	msg := protocol.DecodeMessage(f.Data)

	d.record(msg)

	category := categoryOf(msg)
	for _, fn := range d.registry.handlersFor(category) {
		d.invoke(fn, category, msg)
	}
}

func (d *Dispatcher) record(msg protocol.Message) {
	switch ev := msg.(type) {
	case *protocol.ZoneEvent:
		d.snapshot.SetZoneEvent(ev)
	case *protocol.AreaEvent:
		d.snapshot.SetAreaEvent(ev)
	case *protocol.LogEvent:
		d.snapshot.SetLastLogEvent(ev)
	case *protocol.UnknownMessage:
		d.log.Info("Received message with no decoder",
			zap.Int("msgType", int(ev.MessageType())),
			zap.String("payload", protocol.HexStr(ev.Raw)))
	}
}

func (d *Dispatcher) invoke(fn Handler, category EventCategory, msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Event handler panicked",
				zap.String("category", category.String()),
				zap.String("event", msg.String()),
				zap.Any("panic", r))
		}
	}()

	fn(msg)
}
