package protocol

import (
	"fmt"
	"strings"
)

const (
	// HeaderStart is the fixed frame delimiter.
	HeaderStart byte = 't'

	// HeaderLen is the size of the frame header: delimiter, type, length
	// and sequence bytes.
	HeaderLen = 4

	// MaxFrameLen is the largest encodable frame. The length field is a
	// single byte.
	MaxFrameLen = 255
)

type FrameType byte

const (
	// FrameCommand is a client instruction to the panel.
	FrameCommand FrameType = 'C'

	// FrameResponse answers a previously issued command, carrying the
	// same sequence byte.
	FrameResponse FrameType = 'R'

	// FrameMessage is an unsolicited message pushed by the panel.
	FrameMessage FrameType = 'M'
)

func (t FrameType) String() string {
	switch t {
	case FrameCommand:
		return "command"
	case FrameResponse:
		return "response"
	case FrameMessage:
		return "message"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// Frame is one checksum-validated unit of the wire protocol. Decode never
// yields a Frame whose CRC did not match.
//
// Data holds the frame body: everything after the four header bytes and
// before the trailing CRC. For command and response frames the first byte
// is the command code, for message frames it is the message type. Decode
// guarantees Data is non-empty.
type Frame struct {
	Type FrameType
	Seq  byte
	Data []byte
}

// ID returns the command code or message type of the frame.
func (f *Frame) ID() byte {
	return f.Data[0]
}

// Payload returns the frame body with the leading command code or message
// type stripped.
func (f *Frame) Payload() []byte {
	return f.Data[1:]
}

// HexStr renders binary data as space separated hex, suitable for logging
// payloads.
func HexStr(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}

	return b.String()
}
