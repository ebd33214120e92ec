package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means the buffer does not yet hold a whole frame. The
	// caller should keep the unconsumed bytes and read more.
	ErrIncomplete = errors.New("frame is incomplete, more bytes are needed")

	// ErrInvalid means the bytes at the front of the buffer failed frame
	// validation. The reported consumed count discards exactly the
	// offending bytes so a valid frame following them can still be
	// recovered.
	ErrInvalid = errors.New("frame failed validation")

	// ErrRemoteHangup means the panel sent its hangup marker instead of a
	// frame. The session is gone and the caller should treat this as a
	// panel-forced drop.
	ErrRemoteHangup = errors.New("panel dropped the connection")

	// ErrFrameTooLarge is returned by Encode when the body cannot fit the
	// single byte length field.
	ErrFrameTooLarge = errors.New("frame body too large to encode")

	// ErrEmptyBody is returned by Encode for a zero length body. Every
	// frame carries at least a command code or message type.
	ErrEmptyBody = errors.New("frame body must not be empty")
)

// hangupMarker is what the ComIP module emits in place of a frame when the
// panel forcibly drops the session. A trailing 'A' shows up when the
// module is trying to hang up a modem, typically after a login sent
// before the connection settled.
var hangupMarker = []byte("+++")

// minFrameLen is the smallest valid value of the length field: header,
// one body byte and the CRC.
const minFrameLen = HeaderLen + 2

// Decode attempts to decode a single frame from the front of buf.
//
// It returns the decoded frame and the number of bytes consumed. On
// ErrIncomplete nothing is consumed and the caller should retain buf and
// accumulate more bytes. On ErrInvalid the consumed count covers exactly
// the malformed bytes; callers discard them and call Decode again, which
// bounds the data lost to one corrupted frame. Multiple frames arriving
// in one read are handled by calling Decode repeatedly.
func Decode(buf []byte) (*Frame, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}

	if buf[0] == hangupMarker[0] {
		return decodeHangup(buf)
	}

	if buf[0] != HeaderStart {
		// Out of sync. Skip ahead to the next byte that could start a
		// frame or a hangup marker.
		skip := bytes.IndexAny(buf[1:], "t+")
		if skip < 0 {
			return nil, len(buf), ErrInvalid
		}

		return nil, skip + 1, ErrInvalid
	}

	if len(buf) < HeaderLen {
		return nil, 0, ErrIncomplete
	}

	total := int(buf[2])
	if total < minFrameLen {
		// The length field is nonsense so it cannot tell us how much to
		// skip. Drop the delimiter byte and resynchronize.
		return nil, 1, fmt.Errorf("%w: declared length %d below minimum", ErrInvalid, total)
	}

	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}

	if crc := Checksum(buf[:total-1]); crc != buf[total-1] {
		return nil, total, fmt.Errorf("%w: crc mismatch, expected 0x%02x got 0x%02x",
			ErrInvalid, crc, buf[total-1])
	}

	ftype := FrameType(buf[1])
	switch ftype {
	case FrameCommand, FrameResponse, FrameMessage:
	default:
		return nil, total, fmt.Errorf("%w: unknown frame type 0x%02x", ErrInvalid, buf[1])
	}

	// Copy the body out so the caller is free to reslice its receive
	// buffer underneath us.
	data := make([]byte, total-HeaderLen-1)
	copy(data, buf[HeaderLen:total-1])

	return &Frame{
		Type: ftype,
		Seq:  buf[3],
		Data: data,
	}, total, nil
}

func decodeHangup(buf []byte) (*Frame, int, error) {
	if len(buf) < len(hangupMarker) {
		if bytes.HasPrefix(hangupMarker, buf) {
			return nil, 0, ErrIncomplete
		}

		return nil, 1, ErrInvalid
	}

	if !bytes.HasPrefix(buf, hangupMarker) {
		return nil, 1, ErrInvalid
	}

	consumed := len(hangupMarker)
	if len(buf) > consumed && buf[consumed] == 'A' {
		consumed++
	}

	return nil, consumed, ErrRemoteHangup
}

// Encode serialises a frame of the given type, sequence and body. The
// CRC is always recomputed here; callers never supply one.
func Encode(ftype FrameType, seq byte, body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	total := HeaderLen + len(body) + 1
	if total > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}

	data := make([]byte, 0, total)
	data = append(data, HeaderStart, byte(ftype), byte(total), seq)
	data = append(data, body...)
	data = append(data, Checksum(data))

	return data, nil
}

// EncodeCommand serialises a command frame for the given command code and
// parameters.
func EncodeCommand(seq byte, cmd Command, params []byte) ([]byte, error) {
	body := make([]byte, 0, len(params)+1)
	body = append(body, byte(cmd))
	body = append(body, params...)

	return Encode(FrameCommand, seq, body)
}
