// Package checksum provides the CRC16 integrity check trailing 9x files and
// the content fingerprint the library catalog uses to detect changes.
package checksum

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// crcTable is the reflected CRC-16/ARC table (polynomial 0xA001).
var crcTable = func() [256]uint16 {
	var t [256]uint16
	for i := range t {
		c := uint16(i)
		for j := 0; j < 8; j++ {
			if c&1 != 0 {
				c = c>>1 ^ 0xA001
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return t
}()

// CRC16 computes the checksum over every byte of data except the final two,
// which hold the stored value in a complete file.
func CRC16(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	var crc uint16
	for _, b := range data[:len(data)-2] {
		crc = crc>>8 ^ crcTable[byte(crc)^b]
	}
	return crc
}

// Corrected applies the reference tool's quirk: values at or above 0x8000
// gain 0x0100. This is what files actually store.
func Corrected(crc uint16) uint16 {
	if crc >= 0x8000 {
		return crc + 0x0100
	}
	return crc
}

// Stored reads the little-endian checksum from the last two bytes of data.
func Stored(data []byte) (uint16, bool) {
	if len(data) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data[len(data)-2:]), true
}

// Valid reports whether the stored checksum of a complete file matches the
// corrected computed value.
func Valid(data []byte) bool {
	stored, ok := Stored(data)
	if !ok {
		return false
	}
	return stored == Corrected(CRC16(data))
}

// Seal writes the corrected checksum into the final two bytes of data, which
// the caller must have reserved.
func Seal(data []byte) {
	if len(data) < 2 {
		return
	}
	binary.LittleEndian.PutUint16(data[len(data)-2:], Corrected(CRC16(data)))
}

// fingerprintKey separates library fingerprints from any other BLAKE3 use.
var fingerprintKey = [32]byte{
	'u', 'h', 's', 'k', 'i', 't', '.', 'l', 'i', 'b', 'r', 'a', 'r', 'y', '.',
	'f', 'i', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns the hex-encoded keyed BLAKE3 digest of data.
func Fingerprint(data []byte) string {
	h, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("checksum: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
