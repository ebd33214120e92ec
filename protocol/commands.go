package protocol

import "fmt"

// Command is a Connect protocol command code. Only the read-only surface
// of the protocol is modelled; arm/disarm control codes are deliberately
// absent.
type Command byte

const (
	CmdLogin                  Command = 1
	CmdGetZoneDetails         Command = 3
	CmdGetLCDDisplay          Command = 13
	CmdGetLogPointer          Command = 15
	CmdGetPanelIdentification Command = 22
	CmdGetDateTime            Command = 23
	CmdGetSystemPower         Command = 25
	CmdGetUser                Command = 27
	CmdGetAreaDetails         Command = 35
	CmdSetEventMessages       Command = 37
)

func (c Command) String() string {
	switch c {
	case CmdLogin:
		return "LOGIN"
	case CmdGetZoneDetails:
		return "GETZONEDETAILS"
	case CmdGetLCDDisplay:
		return "GETLCDDISPLAY"
	case CmdGetLogPointer:
		return "GETLOGPOINTER"
	case CmdGetPanelIdentification:
		return "GETPANELIDENTIFICATION"
	case CmdGetDateTime:
		return "GETDATETIME"
	case CmdGetSystemPower:
		return "GETSYSTEMPOWER"
	case CmdGetUser:
		return "GETUSER"
	case CmdGetAreaDetails:
		return "GETAREADETAILS"
	case CmdSetEventMessages:
		return "SETEVENTMESSAGES"
	default:
		return fmt.Sprintf("COMMAND(0x%02x)", byte(c))
	}
}

// Single byte response payloads used by commands that return no data.
const (
	ResponseACK byte = 0x06
	ResponseNAK byte = 0x15
)

// Event message flags for CmdSetEventMessages. The panel only pushes 'M'
// frames for the event classes enabled here.
const (
	EventFlagDebug  uint16 = 1 << 0
	EventFlagZone   uint16 = 1 << 1
	EventFlagArea   uint16 = 1 << 2
	EventFlagOutput uint16 = 1 << 3
	EventFlagUser   uint16 = 1 << 4
	EventFlagLog    uint16 = 1 << 5
)

// EventFlagsAll enables every event class Argus can decode, debug frames
// excluded.
const EventFlagsAll = EventFlagZone | EventFlagArea | EventFlagOutput |
	EventFlagUser | EventFlagLog
