package client_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/argus/client"
	"github.com/luma/argus/protocol"
	"github.com/luma/argus/storage"
	"github.com/luma/argus/transport"
)

var _ = Describe("Panel commands", func() {
	var (
		panel *fakePanel
		store *storage.InmemoryStore
		conn  *client.Conn
		ctx   context.Context
	)

	// pad extends text with NULs to the fixed field width the panel uses.
	pad := func(text string, width int) []byte {
		field := make([]byte, width)
		copy(field, text)
		return field
	}

	connect := func(rest responder) {
		panel.ackLogins(rest)

		var err error
		conn, err = client.Connect(ctx, panel.addr(), client.Options{
			Registry:       client.NewRegistry(),
			Store:          store,
			CommandTimeout: 250 * time.Millisecond,
			Transport: transport.Options{
				SettleDelay: time.Millisecond,
			},
		})
		Expect(err).To(Succeed())
		Expect(conn.Login(ctx, "1234")).To(Succeed())
	}

	answer := func(payload ...byte) responder {
		return func(cmd protocol.Command, seq byte, params []byte) [][]byte {
			return frames(responseFrame(seq, cmd, payload...))
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		panel = newFakePanel()
		store = storage.NewInmemoryStore()
	})

	AfterEach(func() {
		if conn != nil {
			conn.Close()
			conn = nil
		}
		panel.close()
		store.Close()
	})

	Describe("SetEventMessages()", func() {
		It("enables every decodable event class", func() {
			connect(func(cmd protocol.Command, seq byte, params []byte) [][]byte {
				return frames(ackFrame(seq, cmd))
			})

			Expect(conn.SetEventMessages(ctx)).To(Succeed())

			cmds := panel.receivedCommands()
			Expect(cmds[len(cmds)-1].cmd).To(Equal(protocol.CmdSetEventMessages))
			Expect(cmds[len(cmds)-1].params).To(Equal([]byte{0x3e, 0x00}))
		})

		It("surfaces a NAK as an error", func() {
			connect(func(cmd protocol.Command, seq byte, params []byte) [][]byte {
				return frames(nakFrame(seq, cmd))
			})

			Expect(conn.SetEventMessages(ctx)).To(HaveOccurred())
		})
	})

	Describe("GetDateTime()", func() {
		It("decodes the panel clock and records it", func() {
			connect(answer(23, 11, 18, 14, 30, 12))

			t, err := conn.GetDateTime(ctx)
			Expect(err).To(Succeed())
			Expect(t).To(BeTemporally("==",
				time.Date(2018, time.November, 23, 14, 30, 12, 0, time.Local)))

			value, err := store.Get(ctx, "panel.time")
			Expect(err).To(Succeed())
			Expect(value).NotTo(BeEmpty())
		})

		It("rejects a short payload", func() {
			connect(answer(23, 11, 18))

			_, err := conn.GetDateTime(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetSystemPower()", func() {
		It("converts raw readings to volts and milliamps", func() {
			connect(answer(128, 138, 123, 10, 2))

			power, err := conn.GetSystemPower(ctx)
			Expect(err).To(Succeed())
			Expect(power.SystemVoltage).To(BeNumerically("~", 14.4, 0.001))
			Expect(power.BatteryVoltage).To(BeNumerically("~", 13.35, 0.001))
			Expect(power.SystemCurrent).To(Equal(90))
			Expect(power.BatteryCurrent).To(Equal(18))
		})
	})

	Describe("GetLogPointer()", func() {
		It("decodes the little endian pointer", func() {
			connect(answer(0x2c, 0x01))

			pointer, err := conn.GetLogPointer(ctx)
			Expect(err).To(Succeed())
			Expect(pointer).To(Equal(300))
		})
	})

	Describe("GetPanelIdentification()", func() {
		It("parses the identity string and caches it", func() {
			connect(answer(pad("Elite 48 XP V5", 32)...))

			id, err := conn.GetPanelIdentification(ctx)
			Expect(err).To(Succeed())
			Expect(id.Model).To(Equal("Elite"))
			Expect(id.Zones).To(Equal(48))
			Expect(id.Firmware).To(Equal("V5"))
			Expect(id.MaxUsers()).To(Equal(50))
			Expect(id.MaxAreas()).To(Equal(4))

			value, err := store.Get(ctx, "panel.zones")
			Expect(err).To(Succeed())
			Expect(string(value)).To(Equal("48"))
		})

		It("rejects a payload of the wrong length", func() {
			connect(answer(pad("Elite 48", 16)...))

			_, err := conn.GetPanelIdentification(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetLCDDisplay()", func() {
		It("returns the raw 32 character display", func() {
			connect(answer(pad("  THE LOUNGE       14:30 23 Nov", 32)...))

			display, err := conn.GetLCDDisplay(ctx)
			Expect(err).To(Succeed())
			Expect(display).To(HaveLen(32))
			Expect(display).To(ContainSubstring("THE LOUNGE"))
		})
	})

	Describe("GetZoneDetails()", func() {
		It("decodes the single byte area bitmap variant", func() {
			payload := append([]byte{3, 0x05}, pad("LANDING", 32)...)
			connect(answer(payload...))

			zd, err := conn.GetZoneDetails(ctx, 5)
			Expect(err).To(Succeed())
			Expect(zd.Number).To(Equal(5))
			Expect(zd.Type).To(Equal(protocol.ZoneType(3)))
			Expect(zd.Areas).To(Equal(uint64(0x05)))
			Expect(zd.Name).To(Equal("LANDING"))

			value, err := store.Get(ctx, "zones.zone5.name")
			Expect(err).To(Succeed())
			Expect(value).To(Equal([]byte(`"LANDING"`)))
		})

		It("decodes the two byte area bitmap variant", func() {
			payload := append([]byte{1, 0x00, 0x02}, pad("GARAGE DOOR", 32)...)
			connect(answer(payload...))

			zd, err := conn.GetZoneDetails(ctx, 12)
			Expect(err).To(Succeed())
			Expect(zd.Areas).To(Equal(uint64(0x0200)))
			Expect(zd.Name).To(Equal("GARAGE DOOR"))
		})

		It("decodes the eight byte area bitmap variant", func() {
			areas := []byte{1, 0, 0, 0, 0, 0, 0, 0x80}
			payload := append(append([]byte{4}, areas...), pad("WAREHOUSE", 32)...)
			connect(answer(payload...))

			zd, err := conn.GetZoneDetails(ctx, 200)
			Expect(err).To(Succeed())
			Expect(zd.Areas).To(Equal(uint64(1) | uint64(0x80)<<56))
		})

		It("does not cache unused zones", func() {
			payload := append([]byte{0, 0x00}, pad("", 32)...)
			connect(answer(payload...))

			zd, err := conn.GetZoneDetails(ctx, 9)
			Expect(err).To(Succeed())
			Expect(zd.Type).To(Equal(protocol.ZoneTypeUnused))

			value, err := store.Get(ctx, "zones.zone9")
			Expect(err).To(Succeed())
			Expect(value).To(BeEmpty())
		})
	})

	Describe("GetAreaDetails()", func() {
		It("decodes the area configuration", func() {
			payload := append([]byte{1}, pad("HOUSE", 16)...)
			payload = append(payload,
				30, 0, // exit delay
				45, 0, // entry 1
				30, 0, // entry 2
				0, 0) // second entry
			connect(answer(payload...))

			ad, err := conn.GetAreaDetails(ctx, 1)
			Expect(err).To(Succeed())
			Expect(ad.Number).To(Equal(1))
			Expect(ad.Name).To(Equal("HOUSE"))
			Expect(ad.ExitDelay).To(Equal(30))
			Expect(ad.Entry1Delay).To(Equal(45))
			Expect(ad.Entry2Delay).To(Equal(30))
			Expect(ad.SecondEntry).To(Equal(0))

			value, err := store.Get(ctx, "areas.area1.name")
			Expect(err).To(Succeed())
			Expect(value).To(Equal([]byte(`"HOUSE"`)))
		})
	})

	Describe("GetUser()", func() {
		It("decodes a programmed user slot", func() {
			payload := pad("BOB", 8)
			payload = append(payload, 0x12, 0x34, 0xff) // BCD passcode
			payload = append(payload, 0x01)             // areas
			payload = append(payload, 0, 0, 0, 0, 0)
			payload = append(payload, 0xff, 0xff, 0xff, 0xff) // no tag
			payload = append(payload, 0x02, 0x00)             // config
			connect(answer(payload...))

			user, err := conn.GetUser(ctx, 2)
			Expect(err).To(Succeed())
			Expect(user.Number).To(Equal(2))
			Expect(user.Name).To(Equal("BOB"))
			Expect(user.Passcode).To(Equal("1234"))
			Expect(user.Areas).To(Equal(byte(0x01)))
			Expect(user.Tag).To(BeEmpty())
			Expect(user.Config).To(Equal(uint16(2)))
			Expect(user.Valid()).To(BeTrue())
		})

		It("reports an empty slot as invalid", func() {
			payload := pad("", 8)
			payload = append(payload, 0xff, 0xff, 0xff)
			payload = append(payload, 0x00)
			payload = append(payload, 0, 0, 0, 0, 0)
			payload = append(payload, 0xff, 0xff, 0xff, 0xff)
			payload = append(payload, 0x00, 0x00)
			connect(answer(payload...))

			user, err := conn.GetUser(ctx, 7)
			Expect(err).To(Succeed())
			Expect(user.Valid()).To(BeFalse())
		})
	})
})
