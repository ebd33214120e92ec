package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/argus/protocol"
)

var _ = Describe("Checksum()", func() {
	It("matches known vectors", func() {
		Expect(protocol.Checksum(nil)).To(Equal(byte(0xff)))
		Expect(protocol.Checksum([]byte{0x00})).To(Equal(byte(0x8d)))
		Expect(protocol.Checksum([]byte("t"))).To(Equal(byte(0x30)))
		Expect(protocol.Checksum([]byte("123456789"))).To(Equal(byte(0xd6)))
	})

	It("checks a captured login frame", func() {
		frame := append([]byte{'t', 'C', 10, 0, 1}, []byte("1234")...)
		Expect(protocol.Checksum(frame)).To(Equal(byte(0x34)))
	})

	It("changes when any input byte changes", func() {
		data := append([]byte{'t', 'C', 10, 0, 1}, []byte("1234")...)
		want := protocol.Checksum(data)

		for i := range data {
			mutated := append([]byte{}, data...)
			mutated[i] ^= 0x01
			Expect(protocol.Checksum(mutated)).NotTo(Equal(want),
				"crc unchanged after flipping byte %d", i)
		}
	})
})
