package protocol_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/argus/protocol"
)

// packTimestamp builds the panel's bit-packed log timestamp.
func packTimestamp(t time.Time) []byte {
	stamp := uint32(t.Second()) |
		uint32(t.Minute())<<6 |
		uint32(t.Month())<<12 |
		uint32(t.Hour())<<16 |
		uint32(t.Day())<<21 |
		uint32(t.Year()-2000)<<26

	return []byte{byte(stamp), byte(stamp >> 8), byte(stamp >> 16), byte(stamp >> 24)}
}

var _ = Describe("DecodeMessage()", func() {
	It("decodes a zone event with a single byte zone number", func() {
		msg := protocol.DecodeMessage([]byte{byte(protocol.MsgZoneEvent), 5, 0x01})

		ev, ok := msg.(*protocol.ZoneEvent)
		Expect(ok).To(BeTrue())
		Expect(ev.Zone).To(Equal(5))
		Expect(ev.State).To(Equal(protocol.ZoneActive))
		Expect(ev.Alarmed).To(BeFalse())
	})

	It("decodes a zone event with a two byte zone number", func() {
		msg := protocol.DecodeMessage([]byte{byte(protocol.MsgZoneEvent), 0x2c, 0x01, 0x02})

		ev, ok := msg.(*protocol.ZoneEvent)
		Expect(ok).To(BeTrue())
		Expect(ev.Zone).To(Equal(300))
		Expect(ev.State).To(Equal(protocol.ZoneTamper))
	})

	It("unpacks the zone flag bits above the state", func() {
		bitmap := byte(protocol.ZoneActive) | 1<<2 | 1<<4 | 1<<7
		msg := protocol.DecodeMessage([]byte{byte(protocol.MsgZoneEvent), 12, bitmap})

		ev := msg.(*protocol.ZoneEvent)
		Expect(ev.State).To(Equal(protocol.ZoneActive))
		Expect(ev.Fault).To(BeTrue())
		Expect(ev.FailedTest).To(BeFalse())
		Expect(ev.Alarmed).To(BeTrue())
		Expect(ev.ManualBypassed).To(BeFalse())
		Expect(ev.AutoBypassed).To(BeFalse())
		Expect(ev.Masked).To(BeTrue())
		Expect(ev.String()).To(Equal("zone 12 active, fault, alarmed, zone masked"))
	})

	It("decodes an area event", func() {
		msg := protocol.DecodeMessage([]byte{byte(protocol.MsgAreaEvent), 2, byte(protocol.AreaArmed)})

		ev, ok := msg.(*protocol.AreaEvent)
		Expect(ok).To(BeTrue())
		Expect(ev.Area).To(Equal(2))
		Expect(ev.State).To(Equal(protocol.AreaArmed))
		Expect(ev.String()).To(Equal("area 2 armed"))
	})

	It("decodes an output event and names fixed locations", func() {
		msg := protocol.DecodeMessage([]byte{byte(protocol.MsgOutputEvent), 0, 0x05})

		ev, ok := msg.(*protocol.OutputEvent)
		Expect(ok).To(BeTrue())
		Expect(ev.LocationName()).To(Equal("Panel outputs"))
		Expect(ev.State).To(Equal(byte(0x05)))
	})

	It("names network keypad and expander output locations", func() {
		keypad := &protocol.OutputEvent{Location: 0x20}
		Expect(keypad.LocationName()).To(Equal("Network 2 keypad outputs"))

		expander := &protocol.OutputEvent{Location: 0x13}
		Expect(expander.LocationName()).To(Equal("Network 1 expander 3 outputs"))
	})

	It("decodes a user logon event", func() {
		msg := protocol.DecodeMessage([]byte{byte(protocol.MsgUserEvent), 4, byte(protocol.UserMethodTag)})

		ev, ok := msg.(*protocol.UserEvent)
		Expect(ok).To(BeTrue())
		Expect(ev.User).To(Equal(4))
		Expect(ev.Method).To(Equal(protocol.UserMethodTag))
		Expect(ev.String()).To(Equal("logon by user 4 tag"))
	})

	Describe("log events", func() {
		when := time.Date(2018, time.November, 23, 14, 30, 12, 0, time.Local)

		It("decodes the 8 byte variant and its packed timestamp", func() {
			payload := append([]byte{byte(protocol.MsgLogEvent), 6, 2, 17, 1}, packTimestamp(when)...)

			msg := protocol.DecodeMessage(payload)
			ev, ok := msg.(*protocol.LogEvent)
			Expect(ok).To(BeTrue())
			Expect(ev.Event).To(Equal(protocol.LogEventType(6)))
			Expect(ev.Group).To(Equal(protocol.LogEventGroup(2)))
			Expect(ev.Parameter).To(Equal(17))
			Expect(ev.Areas).To(Equal(1))
			Expect(ev.Time).To(BeTemporally("==", when))
			Expect(ev.CommDelayed).To(BeFalse())
			Expect(ev.Communicated).To(BeFalse())
		})

		It("splits the reporting bits out of the group byte", func() {
			group := byte(2) | 1<<6 | 1<<7
			payload := append([]byte{byte(protocol.MsgLogEvent), 6, group, 17, 1}, packTimestamp(when)...)

			ev := protocol.DecodeMessage(payload).(*protocol.LogEvent)
			Expect(ev.Group).To(Equal(protocol.LogEventGroup(2)))
			Expect(ev.CommDelayed).To(BeTrue())
			Expect(ev.Communicated).To(BeTrue())
		})

		It("decodes the 9 byte variant with 16 area bits", func() {
			payload := append([]byte{byte(protocol.MsgLogEvent), 6, 2, 17, 0x01}, packTimestamp(when)...)
			payload = append(payload, 0x02)

			ev := protocol.DecodeMessage(payload).(*protocol.LogEvent)
			Expect(ev.Areas).To(Equal(0x0201))
			Expect(ev.Time).To(BeTemporally("==", when))
		})

		It("decodes the 10 byte variant with 16 bit parameter and areas", func() {
			payload := append([]byte{byte(protocol.MsgLogEvent), 6, 2, 0x2c, 0x01, 0x03, 0x00}, packTimestamp(when)...)

			ev := protocol.DecodeMessage(payload).(*protocol.LogEvent)
			Expect(ev.Parameter).To(Equal(300))
			Expect(ev.Areas).To(Equal(3))
			Expect(ev.Time).To(BeTemporally("==", when))
		})
	})

	It("passes debug frames through untouched", func() {
		msg := protocol.DecodeMessage([]byte{byte(protocol.MsgDebug), 0xde, 0xad})

		dbg, ok := msg.(*protocol.DebugMessage)
		Expect(ok).To(BeTrue())
		Expect(dbg.Raw).To(Equal([]byte{0xde, 0xad}))
	})

	It("wraps unrecognized message types instead of failing", func() {
		msg := protocol.DecodeMessage([]byte{99, 1, 2, 3})

		unknown, ok := msg.(*protocol.UnknownMessage)
		Expect(ok).To(BeTrue())
		Expect(unknown.MessageType()).To(Equal(protocol.MessageType(99)))
		Expect(unknown.Raw).To(Equal([]byte{1, 2, 3}))
	})

	It("wraps truncated payloads instead of failing", func() {
		msg := protocol.DecodeMessage([]byte{byte(protocol.MsgZoneEvent), 5})

		_, ok := msg.(*protocol.UnknownMessage)
		Expect(ok).To(BeTrue())
	})

	It("wraps an empty body instead of failing", func() {
		_, ok := protocol.DecodeMessage(nil).(*protocol.UnknownMessage)
		Expect(ok).To(BeTrue())
	})
})
