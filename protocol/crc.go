package protocol

// The panel checksums frames with an 8 bit CRC: polynomial 0x185
// (truncated to 0x85), MSB first, initial value 0xFF, no reflection and
// no final xor. These parameters are not one of the catalogued CRC-8
// variants; they were verified against real panel traffic, so treat them
// as protocol constants rather than deriving them from a named CRC.
const (
	crcPoly byte = 0x85
	crcInit byte = 0xff
)

var crcTable [256]byte

func init() {
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

// Checksum computes the frame CRC over data, which must cover the header
// and body but not the CRC byte itself.
func Checksum(data []byte) byte {
	crc := crcInit
	for _, b := range data {
		crc = crcTable[crc^b]
	}

	return crc
}
