package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// MessageType identifies an unsolicited 'M' frame.
type MessageType byte

const (
	MsgDebug       MessageType = 0
	MsgZoneEvent   MessageType = 1
	MsgAreaEvent   MessageType = 2
	MsgOutputEvent MessageType = 3
	MsgUserEvent   MessageType = 4
	MsgLogEvent    MessageType = 5
)

// Message is a decoded unsolicited event from the panel.
type Message interface {
	MessageType() MessageType
	String() string
}

// ZoneState is the low two bits of a zone event bitmap.
type ZoneState byte

const (
	ZoneSecure ZoneState = iota
	ZoneActive
	ZoneTamper
	ZoneShort
)

func (s ZoneState) String() string {
	switch s {
	case ZoneSecure:
		return "secure"
	case ZoneActive:
		return "active"
	case ZoneTamper:
		return "tamper"
	case ZoneShort:
		return "short"
	default:
		return fmt.Sprintf("zonestate(%d)", byte(s))
	}
}

// ZoneEvent reports a zone changing state.
type ZoneEvent struct {
	Zone  int
	State ZoneState
	Time  time.Time

	Fault          bool
	FailedTest     bool
	Alarmed        bool
	ManualBypassed bool
	AutoBypassed   bool
	Masked         bool
}

func (*ZoneEvent) MessageType() MessageType { return MsgZoneEvent }

func (e *ZoneEvent) String() string {
	s := fmt.Sprintf("zone %d %s", e.Zone, e.State)
	if e.Fault {
		s += ", fault"
	}
	if e.FailedTest {
		s += ", failed test"
	}
	if e.Alarmed {
		s += ", alarmed"
	}
	if e.ManualBypassed {
		s += ", manual bypassed"
	}
	if e.AutoBypassed {
		s += ", auto bypassed"
	}
	if e.Masked {
		s += ", zone masked"
	}

	return s
}

// AreaState is the armed state reported by an area event.
type AreaState byte

const (
	AreaDisarmed AreaState = iota
	AreaInExit
	AreaInEntry
	AreaArmed
	AreaPartArmed
	AreaInAlarm
)

func (s AreaState) String() string {
	switch s {
	case AreaDisarmed:
		return "disarmed"
	case AreaInExit:
		return "in exit"
	case AreaInEntry:
		return "in entry"
	case AreaArmed:
		return "armed"
	case AreaPartArmed:
		return "part armed"
	case AreaInAlarm:
		return "in alarm"
	default:
		return fmt.Sprintf("areastate(%d)", byte(s))
	}
}

// AreaEvent reports an area changing armed state.
type AreaEvent struct {
	Area  int
	State AreaState
}

func (*AreaEvent) MessageType() MessageType { return MsgAreaEvent }

func (e *AreaEvent) String() string {
	return fmt.Sprintf("area %d %s", e.Area, e.State)
}

// OutputEvent reports an output location changing state.
type OutputEvent struct {
	Location int
	State    byte
}

func (*OutputEvent) MessageType() MessageType { return MsgOutputEvent }

var outputLocations = []string{
	"Panel outputs",
	"Digi outputs",
	"Digi Channel low 8",
	"Digi Channel high 8",
	"Redcare outputs",
	"Custom outputs 1",
	"Custom outputs 2",
	"Custom outputs 3",
	"Custom outputs 4",
	"X-10 outputs",
}

// LocationName renders the output location. Locations beyond the fixed
// table address network keypads and expanders, packed as network in the
// high nibble and device in the low nibble.
func (e *OutputEvent) LocationName() string {
	if e.Location < len(outputLocations) {
		return outputLocations[e.Location]
	}

	if e.Location&0xf == 0 {
		return fmt.Sprintf("Network %d keypad outputs", e.Location>>4)
	}

	return fmt.Sprintf("Network %d expander %d outputs", e.Location>>4, e.Location&0xf)
}

func (e *OutputEvent) String() string {
	return fmt.Sprintf("output location %d ['%s'] now 0x%02x", e.Location, e.LocationName(), e.State)
}

// UserMethod is how a user identified themselves to the panel.
type UserMethod byte

const (
	UserMethodCode UserMethod = iota
	UserMethodTag
	UserMethodCodeAndTag
)

func (m UserMethod) String() string {
	switch m {
	case UserMethodCode:
		return "code"
	case UserMethodTag:
		return "tag"
	case UserMethodCodeAndTag:
		return "code+tag"
	default:
		return fmt.Sprintf("method(%d)", byte(m))
	}
}

// UserEvent reports a user logging on at a keypad.
type UserEvent struct {
	User   int
	Method UserMethod
}

func (*UserEvent) MessageType() MessageType { return MsgUserEvent }

func (e *UserEvent) String() string {
	return fmt.Sprintf("logon by user %d %s", e.User, e.Method)
}

// LogEvent is one decoded entry of the panel's event log, pushed as it is
// written.
type LogEvent struct {
	Event     LogEventType
	Group     LogEventGroup
	Parameter int
	Areas     int
	Time      time.Time

	// CommDelayed and Communicated reflect the ARC reporting bits packed
	// into the group byte.
	CommDelayed  bool
	Communicated bool
}

func (*LogEvent) MessageType() MessageType { return MsgLogEvent }

func (e *LogEvent) String() string {
	group := e.Group.String()
	if e.CommDelayed {
		group += " [comm delayed]"
	}
	if e.Communicated {
		group += " [communicated]"
	}

	return fmt.Sprintf("%s %s, %s  parameter: %d  areas: %d",
		e.Time.Format("2006-01-02 15:04:05"), e.Event, group, e.Parameter, e.Areas)
}

// DebugMessage carries a raw debug frame from the panel.
type DebugMessage struct {
	Raw []byte
}

func (*DebugMessage) MessageType() MessageType { return MsgDebug }

func (m *DebugMessage) String() string {
	return "debug message: " + HexStr(m.Raw)
}

// UnknownMessage preserves a message we do not know how to decode, so
// protocol coverage gaps are observable rather than silent.
type UnknownMessage struct {
	Type MessageType
	Raw  []byte
}

func (m *UnknownMessage) MessageType() MessageType { return m.Type }

func (m *UnknownMessage) String() string {
	return fmt.Sprintf("unknown message type %d: %s", byte(m.Type), HexStr(m.Raw))
}

// DecodeMessage decodes the body of an 'M' frame (message type byte plus
// payload) into a typed event. It never fails: bodies that cannot be
// decoded come back as *UnknownMessage.
func DecodeMessage(data []byte) Message {
	if len(data) == 0 {
		return &UnknownMessage{}
	}

	msgType, payload := MessageType(data[0]), data[1:]

	switch msgType {
	case MsgDebug:
		return &DebugMessage{Raw: payload}

	case MsgZoneEvent:
		if ev := decodeZoneEvent(payload); ev != nil {
			return ev
		}

	case MsgAreaEvent:
		if len(payload) >= 2 {
			return &AreaEvent{
				Area:  int(payload[0]),
				State: AreaState(payload[1]),
			}
		}

	case MsgOutputEvent:
		if len(payload) >= 2 {
			return &OutputEvent{
				Location: int(payload[0]),
				State:    payload[1],
			}
		}

	case MsgUserEvent:
		if len(payload) >= 2 {
			return &UserEvent{
				User:   int(payload[0]),
				Method: UserMethod(payload[1]),
			}
		}

	case MsgLogEvent:
		if ev := decodeLogEvent(payload); ev != nil {
			return ev
		}
	}

	return &UnknownMessage{Type: msgType, Raw: payload}
}

func decodeZoneEvent(payload []byte) *ZoneEvent {
	var zone int
	var bitmap byte

	switch len(payload) {
	case 2:
		zone = int(payload[0])
		bitmap = payload[1]
	case 3:
		// Larger panels report the zone number as two bytes.
		zone = int(binary.LittleEndian.Uint16(payload[:2]))
		bitmap = payload[2]
	default:
		return nil
	}

	return &ZoneEvent{
		Zone:           zone,
		State:          ZoneState(bitmap & 0x3),
		Time:           time.Now(),
		Fault:          bitmap&(1<<2) != 0,
		FailedTest:     bitmap&(1<<3) != 0,
		Alarmed:        bitmap&(1<<4) != 0,
		ManualBypassed: bitmap&(1<<5) != 0,
		AutoBypassed:   bitmap&(1<<6) != 0,
		Masked:         bitmap&(1<<7) != 0,
	}
}

func decodeLogEvent(payload []byte) *LogEvent {
	var (
		parameter int
		areas     int
		stamp     []byte
	)

	switch len(payload) {
	case 8:
		parameter = int(payload[2])
		areas = int(payload[3])
		stamp = payload[4:8]
	case 9:
		// Premier 168: 16 bits of area info, the high byte trails the
		// timestamp.
		parameter = int(payload[2])
		areas = int(payload[3]) | int(payload[8])<<8
		stamp = payload[4:8]
	case 10:
		// Premier 640.
		parameter = int(binary.LittleEndian.Uint16(payload[2:4]))
		areas = int(binary.LittleEndian.Uint16(payload[4:6]))
		stamp = payload[6:10]
	default:
		return nil
	}

	group := payload[1]

	return &LogEvent{
		Event:        LogEventType(payload[0]),
		Group:        LogEventGroup(group & 0x3f),
		Parameter:    parameter,
		Areas:        areas,
		Time:         decodeTimestamp(binary.LittleEndian.Uint32(stamp)),
		CommDelayed:  group&(1<<6) != 0,
		Communicated: group&(1<<7) != 0,
	}
}

// decodeTimestamp unpacks the panel's bit-packed log timestamp: seconds
// in bits 0-5, minutes 6-11, month 12-15, hours 16-20, day 21-25 and
// years since 2000 in 26-31.
func decodeTimestamp(stamp uint32) time.Time {
	sec := int(stamp & 63)
	min := int(stamp >> 6 & 63)
	month := int(stamp >> 12 & 15)
	hour := int(stamp >> 16 & 31)
	day := int(stamp >> 21 & 31)
	year := 2000 + int(stamp>>26&63)

	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.Local)
}
