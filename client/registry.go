package client

import (
	"sync"

	"github.com/luma/argus/protocol"
)

// EventCategory groups unsolicited panel messages for handler
// registration purposes.
type EventCategory int

const (
	CategoryZone EventCategory = iota
	CategoryArea
	CategoryOutput
	CategoryUser
	CategoryLog
	CategoryUnknown
)

func (c EventCategory) String() string {
	switch c {
	case CategoryZone:
		return "zone"
	case CategoryArea:
		return "area"
	case CategoryOutput:
		return "output"
	case CategoryUser:
		return "user"
	case CategoryLog:
		return "log"
	default:
		return "unknown"
	}
}

// Handler receives a decoded event. Handlers run synchronously on the
// read path and should hand off long work elsewhere.
type Handler func(protocol.Message)

// Typed handler signatures, one per event category.
type (
	ZoneHandler    func(*protocol.ZoneEvent)
	AreaHandler    func(*protocol.AreaEvent)
	OutputHandler  func(*protocol.OutputEvent)
	UserHandler    func(*protocol.UserEvent)
	LogHandler     func(*protocol.LogEvent)
	UnknownHandler func(protocol.Message)
)

// Registration is the token returned by a register call, used to
// unregister the handler again.
type Registration struct {
	id       uint64
	category EventCategory
}

type registered struct {
	id uint64
	fn Handler
}

// Registry maps event categories to ordered handler lists. Handlers are
// invoked in FIFO registration order.
//
// A Registry is created by the owning caller and handed to each Conn, so
// registrations are a capability that survives reconnect cycles rather
// than being scoped to one session.
type Registry struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[EventCategory][]registered
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[EventCategory][]registered),
	}
}

func (r *Registry) OnZoneEvent(fn ZoneHandler) *Registration {
	return r.register(CategoryZone, func(m protocol.Message) {
		fn(m.(*protocol.ZoneEvent))
	})
}

func (r *Registry) OnAreaEvent(fn AreaHandler) *Registration {
	return r.register(CategoryArea, func(m protocol.Message) {
		fn(m.(*protocol.AreaEvent))
	})
}

func (r *Registry) OnOutputEvent(fn OutputHandler) *Registration {
	return r.register(CategoryOutput, func(m protocol.Message) {
		fn(m.(*protocol.OutputEvent))
	})
}

func (r *Registry) OnUserEvent(fn UserHandler) *Registration {
	return r.register(CategoryUser, func(m protocol.Message) {
		fn(m.(*protocol.UserEvent))
	})
}

func (r *Registry) OnLogEvent(fn LogHandler) *Registration {
	return r.register(CategoryLog, func(m protocol.Message) {
		fn(m.(*protocol.LogEvent))
	})
}

// OnUnknown receives debug frames and any message Argus cannot decode.
func (r *Registry) OnUnknown(fn UnknownHandler) *Registration {
	return r.register(CategoryUnknown, func(m protocol.Message) {
		fn(m)
	})
}

func (r *Registry) Unregister(reg *Registration) {
	if reg == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[reg.category]
	for i, h := range list {
		if h.id == reg.id {
			r.handlers[reg.category] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (r *Registry) register(category EventCategory, fn Handler) *Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.handlers[category] = append(r.handlers[category], registered{
		id: r.nextID,
		fn: fn,
	})

	return &Registration{id: r.nextID, category: category}
}

// handlersFor snapshots the handler list for a category so invocation can
// proceed without holding the lock.
func (r *Registry) handlersFor(category EventCategory) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[category]
	fns := make([]Handler, len(list))
	for i, h := range list {
		fns[i] = h.fn
	}

	return fns
}

func categoryOf(msg protocol.Message) EventCategory {
	switch msg.(type) {
	case *protocol.ZoneEvent:
		return CategoryZone
	case *protocol.AreaEvent:
		return CategoryArea
	case *protocol.OutputEvent:
		return CategoryOutput
	case *protocol.UserEvent:
		return CategoryUser
	case *protocol.LogEvent:
		return CategoryLog
	default:
		return CategoryUnknown
	}
}
