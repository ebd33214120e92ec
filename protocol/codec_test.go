package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/argus/protocol"
)

func mustEncode(ftype protocol.FrameType, seq byte, body []byte) []byte {
	data, err := protocol.Encode(ftype, seq, body)
	Expect(err).To(Succeed())
	return data
}

var _ = Describe("Codec", func() {
	loginBody := []byte{byte(protocol.CmdLogin), '1', '2', '3', '4'}

	Describe("Encode()", func() {
		It("frames the body with delimiter, type, length and sequence", func() {
			data := mustEncode(protocol.FrameCommand, 7, loginBody)

			Expect(data).To(HaveLen(len(loginBody) + 5))
			Expect(data[0]).To(Equal(byte('t')))
			Expect(data[1]).To(Equal(byte('C')))
			Expect(data[2]).To(Equal(byte(len(data))))
			Expect(data[3]).To(Equal(byte(7)))
		})

		It("always recomputes the checksum over header and body", func() {
			data := mustEncode(protocol.FrameCommand, 1, loginBody)

			Expect(data[len(data)-1]).To(Equal(protocol.Checksum(data[:len(data)-1])))
		})

		It("rejects an empty body", func() {
			_, err := protocol.Encode(protocol.FrameCommand, 0, nil)
			Expect(err).To(MatchError(protocol.ErrEmptyBody))
		})

		It("rejects a body too large for the single length byte", func() {
			_, err := protocol.Encode(protocol.FrameCommand, 0, make([]byte, 251))
			Expect(err).To(MatchError(protocol.ErrFrameTooLarge))

			_, err = protocol.Encode(protocol.FrameCommand, 0, make([]byte, 250))
			Expect(err).To(Succeed())
		})
	})

	Describe("Decode()", func() {
		It("round-trips an encoded frame", func() {
			data := mustEncode(protocol.FrameResponse, 42, loginBody)

			f, consumed, err := protocol.Decode(data)
			Expect(err).To(Succeed())
			Expect(consumed).To(Equal(len(data)))
			Expect(f.Type).To(Equal(protocol.FrameResponse))
			Expect(f.Seq).To(Equal(byte(42)))
			Expect(f.Data).To(Equal(loginBody))
			Expect(f.ID()).To(Equal(byte(protocol.CmdLogin)))
			Expect(f.Payload()).To(Equal([]byte("1234")))
		})

		It("returns ErrIncomplete without consuming while the frame is partial", func() {
			data := mustEncode(protocol.FrameMessage, 3, []byte{byte(protocol.MsgZoneEvent), 5, 1})

			for i := 0; i < len(data); i++ {
				f, consumed, err := protocol.Decode(data[:i])
				Expect(f).To(BeNil())
				Expect(consumed).To(Equal(0))
				Expect(errors.Is(err, protocol.ErrIncomplete)).To(BeTrue())
			}
		})

		It("decodes identically regardless of chunk boundaries", func() {
			data := mustEncode(protocol.FrameResponse, 9, loginBody)

			for chunkSize := 1; chunkSize <= len(data); chunkSize++ {
				var buf []byte
				var decoded *protocol.Frame

				for at := 0; at < len(data); at += chunkSize {
					end := at + chunkSize
					if end > len(data) {
						end = len(data)
					}
					buf = append(buf, data[at:end]...)

					f, consumed, err := protocol.Decode(buf)
					if errors.Is(err, protocol.ErrIncomplete) {
						continue
					}

					Expect(err).To(Succeed())
					buf = buf[consumed:]
					decoded = f
				}

				Expect(decoded).NotTo(BeNil())
				Expect(decoded.Data).To(Equal(loginBody))
				Expect(buf).To(BeEmpty())
			}
		})

		It("decodes multiple frames arriving in one read", func() {
			first := mustEncode(protocol.FrameMessage, 0, []byte{byte(protocol.MsgZoneEvent), 5, 1})
			second := mustEncode(protocol.FrameResponse, 1, []byte{byte(protocol.CmdGetDateTime), 1, 2, 3})

			buf := append(append([]byte{}, first...), second...)

			f, consumed, err := protocol.Decode(buf)
			Expect(err).To(Succeed())
			Expect(f.Type).To(Equal(protocol.FrameMessage))
			buf = buf[consumed:]

			f, consumed, err = protocol.Decode(buf)
			Expect(err).To(Succeed())
			Expect(f.Type).To(Equal(protocol.FrameResponse))
			Expect(buf[consumed:]).To(BeEmpty())
		})

		It("classifies corrupted bytes as invalid", func() {
			data := mustEncode(protocol.FrameResponse, 5, loginBody)

			for i := 0; i < len(data); i++ {
				if i == 2 {
					// A flipped length byte legitimately looks like a
					// longer, still incomplete frame.
					continue
				}

				corrupted := append([]byte{}, data...)
				corrupted[i] ^= 0x20

				f, _, err := protocol.Decode(corrupted)
				Expect(f).To(BeNil())
				Expect(errors.Is(err, protocol.ErrInvalid)).To(BeTrue(),
					"expected invalid after flipping byte %d", i)
			}
		})

		It("discards exactly the corrupted frame and recovers the next one", func() {
			bad := mustEncode(protocol.FrameResponse, 5, loginBody)
			bad[6] ^= 0xff // corrupt a body byte, CRC no longer matches

			good := mustEncode(protocol.FrameMessage, 6, []byte{byte(protocol.MsgAreaEvent), 1, 3})
			buf := append(append([]byte{}, bad...), good...)

			f, consumed, err := protocol.Decode(buf)
			Expect(f).To(BeNil())
			Expect(errors.Is(err, protocol.ErrInvalid)).To(BeTrue())
			Expect(consumed).To(Equal(len(bad)))

			f, consumed, err = protocol.Decode(buf[consumed:])
			Expect(err).To(Succeed())
			Expect(f.Type).To(Equal(protocol.FrameMessage))
			Expect(f.Data).To(Equal([]byte{byte(protocol.MsgAreaEvent), 1, 3}))
			Expect(consumed).To(Equal(len(good)))
		})

		It("skips leading garbage to resynchronize on the next delimiter", func() {
			good := mustEncode(protocol.FrameMessage, 0, []byte{byte(protocol.MsgZoneEvent), 5, 1})
			buf := append([]byte("garbage"), good...)

			f, consumed, err := protocol.Decode(buf)
			Expect(f).To(BeNil())
			Expect(errors.Is(err, protocol.ErrInvalid)).To(BeTrue())

			f, _, err = protocol.Decode(buf[consumed:])
			Expect(err).To(Succeed())
			Expect(f.Type).To(Equal(protocol.FrameMessage))
		})

		It("reports the panel hangup marker", func() {
			f, consumed, err := protocol.Decode([]byte("+++"))
			Expect(f).To(BeNil())
			Expect(err).To(MatchError(protocol.ErrRemoteHangup))
			Expect(consumed).To(Equal(3))
		})

		It("swallows the modem variant of the hangup marker", func() {
			_, consumed, err := protocol.Decode([]byte("+++A"))
			Expect(err).To(MatchError(protocol.ErrRemoteHangup))
			Expect(consumed).To(Equal(4))
		})

		It("waits for more bytes on a partial hangup marker", func() {
			_, consumed, err := protocol.Decode([]byte("++"))
			Expect(errors.Is(err, protocol.ErrIncomplete)).To(BeTrue())
			Expect(consumed).To(Equal(0))
		})
	})
})
