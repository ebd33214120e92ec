package client

import (
	"context"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/luma/argus/protocol"
)

// PanelIdentity describes the panel, from GETPANELIDENTIFICATION.
type PanelIdentity struct {
	Model    string
	Zones    int
	Firmware string
}

// Zone counts map onto panel models with fixed user and area capacities.
var (
	panelUsers = map[int]int{12: 8, 24: 25, 48: 50, 64: 50, 88: 100, 168: 200, 640: 1000}
	panelAreas = map[int]int{12: 2, 24: 2, 48: 4, 64: 4, 88: 8, 168: 16, 640: 64}
)

// MaxUsers returns the number of user slots for this panel model, or 0
// when the model is not recognised.
func (id *PanelIdentity) MaxUsers() int {
	return panelUsers[id.Zones]
}

// MaxAreas returns the number of areas for this panel model, or 0 when
// the model is not recognised.
func (id *PanelIdentity) MaxAreas() int {
	return panelAreas[id.Zones]
}

// SystemPower is the decoded GETSYSTEMPOWER telemetry. Voltages are in
// volts, currents in milliamps.
type SystemPower struct {
	SystemVoltage  float64
	BatteryVoltage float64
	SystemCurrent  int
	BatteryCurrent int
}

// ZoneDetails is the programmed configuration of one zone.
type ZoneDetails struct {
	Number int
	Type   protocol.ZoneType

	// Areas is a bitmap of the areas the zone belongs to. Its wire width
	// varies with panel size (1, 2 or 8 bytes).
	Areas uint64

	Name string
}

// AreaDetails is the programmed configuration of one area. Delays are in
// seconds.
type AreaDetails struct {
	Number      int
	Name        string
	ExitDelay   int
	Entry1Delay int
	Entry2Delay int
	SecondEntry int
}

// User is one decoded user slot.
type User struct {
	Number   int
	Name     string
	Passcode string
	Areas    byte
	Tag      string
	Config   uint16
}

// Valid reports whether the slot is actually in use.
func (u *User) Valid() bool {
	return u.Passcode != "" || u.Tag != ""
}

// SetEventMessages asks the panel to push unsolicited messages for every
// event class we can decode. Without this the panel stays silent after
// login.
func (c *Conn) SetEventMessages(ctx context.Context) error {
	flags := protocol.EventFlagsAll
	body := []byte{byte(flags), byte(flags >> 8)}

	payload, err := c.Issue(ctx, protocol.CmdSetEventMessages, body)
	if err != nil {
		return err
	}

	return ackPayload(protocol.CmdSetEventMessages, payload)
}

// GetDateTime reads the panel clock and records it in the snapshot.
func (c *Conn) GetDateTime(ctx context.Context) (time.Time, error) {
	payload, err := c.Issue(ctx, protocol.CmdGetDateTime, nil)
	if err != nil {
		return time.Time{}, err
	}

	if len(payload) < 6 {
		return time.Time{}, wrongLength(protocol.CmdGetDateTime, payload)
	}

	// day, month, year-2000, hour, minute, second
	t := time.Date(2000+int(payload[2]), time.Month(payload[1]), int(payload[0]),
		int(payload[3]), int(payload[4]), int(payload[5]), 0, time.Local)

	c.snapshot.SetPanelTime(t)

	return t, nil
}

// GetSystemPower reads voltage and current telemetry and records it in
// the snapshot.
func (c *Conn) GetSystemPower(ctx context.Context) (*SystemPower, error) {
	payload, err := c.Issue(ctx, protocol.CmdGetSystemPower, nil)
	if err != nil {
		return nil, err
	}

	if len(payload) != 5 {
		return nil, wrongLength(protocol.CmdGetSystemPower, payload)
	}

	ref := int(payload[0])

	power := &SystemPower{
		SystemVoltage:  13.7 + float64(int(payload[1])-ref)*0.070,
		BatteryVoltage: 13.7 + float64(int(payload[2])-ref)*0.070,
		SystemCurrent:  int(payload[3]) * 9,
		BatteryCurrent: int(payload[4]) * 9,
	}

	c.snapshot.SetPower(power)

	return power, nil
}

// GetLogPointer reads the panel's event log write pointer.
func (c *Conn) GetLogPointer(ctx context.Context) (int, error) {
	payload, err := c.Issue(ctx, protocol.CmdGetLogPointer, nil)
	if err != nil {
		return 0, err
	}

	if len(payload) != 2 {
		return 0, wrongLength(protocol.CmdGetLogPointer, payload)
	}

	pointer := int(binary.LittleEndian.Uint16(payload))
	c.snapshot.SetLogPointer(pointer)

	return pointer, nil
}

// GetPanelIdentification reads the panel model string and records the
// identity in the snapshot.
func (c *Conn) GetPanelIdentification(ctx context.Context) (*PanelIdentity, error) {
	payload, err := c.Issue(ctx, protocol.CmdGetPanelIdentification, nil)
	if err != nil {
		return nil, err
	}

	if len(payload) != 32 {
		return nil, wrongLength(protocol.CmdGetPanelIdentification, payload)
	}

	// e.g. "Premier 48 V4.0"-ish: model, zone count, a field we do not
	// use, firmware version.
	fields := strings.Fields(sanitizeText(string(payload)))
	if len(fields) < 4 {
		return nil, fmt.Errorf("%s: cannot parse identification %q",
			protocol.CmdGetPanelIdentification, string(payload))
	}

	zones, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%s: cannot parse zone count %q",
			protocol.CmdGetPanelIdentification, fields[1])
	}

	id := &PanelIdentity{
		Model:    fields[0],
		Zones:    zones,
		Firmware: fields[3],
	}

	c.snapshot.SetIdentity(id)

	return id, nil
}

// GetLCDDisplay reads the 32 character keypad display contents.
func (c *Conn) GetLCDDisplay(ctx context.Context) (string, error) {
	payload, err := c.Issue(ctx, protocol.CmdGetLCDDisplay, nil)
	if err != nil {
		return "", err
	}

	if len(payload) != 32 {
		return "", wrongLength(protocol.CmdGetLCDDisplay, payload)
	}

	return string(payload), nil
}

// GetZoneDetails reads the configuration of one zone and caches its name
// and type in the snapshot.
func (c *Conn) GetZoneDetails(ctx context.Context, zone int) (*ZoneDetails, error) {
	// TODO: the Premier 680 wants the zone number as two bytes here.
	payload, err := c.Issue(ctx, protocol.CmdGetZoneDetails, []byte{byte(zone)})
	if err != nil {
		return nil, err
	}

	zd := &ZoneDetails{Number: zone}

	switch len(payload) {
	case 34:
		zd.Type = protocol.ZoneType(payload[0])
		zd.Areas = uint64(payload[1])
		zd.Name = sanitizeText(string(payload[2:]))
	case 35:
		zd.Type = protocol.ZoneType(payload[0])
		zd.Areas = uint64(binary.LittleEndian.Uint16(payload[1:3]))
		zd.Name = sanitizeText(string(payload[3:]))
	case 41:
		zd.Type = protocol.ZoneType(payload[0])
		zd.Areas = binary.LittleEndian.Uint64(payload[1:9])
		zd.Name = sanitizeText(string(payload[9:]))
	default:
		return nil, wrongLength(protocol.CmdGetZoneDetails, payload)
	}

	if zd.Type != protocol.ZoneTypeUnused {
		c.snapshot.SetZoneDetails(zd)
	}

	return zd, nil
}

// GetAreaDetails reads the configuration of one area and caches it in
// the snapshot.
func (c *Conn) GetAreaDetails(ctx context.Context, area int) (*AreaDetails, error) {
	payload, err := c.Issue(ctx, protocol.CmdGetAreaDetails, []byte{byte(area)})
	if err != nil {
		return nil, err
	}

	if len(payload) != 25 {
		return nil, wrongLength(protocol.CmdGetAreaDetails, payload)
	}

	// payload[0] echoes the area number
	ad := &AreaDetails{
		Number:      area,
		Name:        sanitizeText(string(payload[1:17])),
		ExitDelay:   int(binary.LittleEndian.Uint16(payload[17:19])),
		Entry1Delay: int(binary.LittleEndian.Uint16(payload[19:21])),
		Entry2Delay: int(binary.LittleEndian.Uint16(payload[21:23])),
		SecondEntry: int(binary.LittleEndian.Uint16(payload[23:25])),
	}

	c.snapshot.SetAreaDetails(ad)

	return ad, nil
}

// GetUser reads one user slot.
func (c *Conn) GetUser(ctx context.Context, user int) (*User, error) {
	// Panels with more than 255 users need a two byte number; untested,
	// so stick to one byte like the panels we have seen.
	payload, err := c.Issue(ctx, protocol.CmdGetUser, []byte{byte(user)})
	if err != nil {
		return nil, err
	}

	if len(payload) != 23 {
		return nil, wrongLength(protocol.CmdGetUser, payload)
	}

	return &User{
		Number:   user,
		Name:     sanitizeText(string(payload[0:8])),
		Passcode: bcdDecode(payload[8:11]),
		Areas:    payload[11],
		Tag:      bcdDecode(payload[17:21]), // last byte is always 0xff
		Config:   binary.LittleEndian.Uint16(payload[21:23]),
	}, nil
}

// ackPayload interprets the single-byte ACK/NAK payload used by commands
// with no data to return.
func ackPayload(cmd protocol.Command, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%s: empty response", cmd)
	}

	switch payload[0] {
	case protocol.ResponseACK:
		return nil
	case protocol.ResponseNAK:
		return fmt.Errorf("%s: NAK response from panel", cmd)
	default:
		return fmt.Errorf("%s: unexpected ack payload 0x%02x", cmd, payload[0])
	}
}

func wrongLength(cmd protocol.Command, payload []byte) error {
	return fmt.Errorf("%s: response wrong length %d: %s",
		cmd, len(payload), protocol.HexStr(payload))
}

var nonWord = regexp.MustCompile(`\W+`)

// sanitizeText cleans the panel's fixed-width, NUL padded text fields
// into something printable.
func sanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\x00", " ")
	s = nonWord.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// bcdDecode unpacks a BCD encoded digit string, stopping at filler
// nibbles.
func bcdDecode(data []byte) string {
	var b strings.Builder

	for _, c := range data {
		for _, nibble := range [2]byte{c >> 4, c & 0xf} {
			if nibble <= 9 {
				b.WriteByte('0' + nibble)
			}
		}
	}

	return b.String()
}
