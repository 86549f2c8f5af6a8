// Package cipher implements the reversible text obfuscation schemes used by
// UHS files. None of them are cryptography; they exist so hints cannot be
// read by accident, and their output must match existing files byte for byte.
package cipher

// keySeed is cycled over the master title when deriving a 9x key.
const keySeed = "key"

// SimpleDecrypt reverses the keyless transform used by 88a hints and 9x
// "hint" hunks. Bytes below 32 pass through unchanged.
func SimpleDecrypt(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := int(s[i])
		switch {
		case c < 32:
		case c < 80:
			c = c*2 - 32
		default:
			c = c*2 - 127
		}
		out[i] = byte(c)
	}
	return string(out)
}

// SimpleEncrypt is the exact inverse of SimpleDecrypt for printable ASCII.
func SimpleEncrypt(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := int(s[i])
		switch {
		case c < 32:
		case c%2 == 0:
			c = (c + 32) / 2
		default:
			c = (c + 127) / 2
		}
		out[i] = byte(c)
	}
	return string(out)
}

// DeriveKey builds the per-file key from the master subject title. The
// result has one byte per title byte and is always the same for the same
// title.
func DeriveKey(title string) []byte {
	key := make([]byte, len(title))
	for i := 0; i < len(title); i++ {
		k := int(title[i]) + (int(keySeed[i%len(keySeed)]) ^ (i + 40))
		key[i] = byte(fold(k))
	}
	return key
}

// NestDecrypt decrypts nesthint and incentive text. The XOR term uses the
// absolute position in the string.
func NestDecrypt(s string, key []byte) string {
	return shift(s, key, -1, absoluteIndex)
}

// NestEncrypt is the inverse of NestDecrypt.
func NestEncrypt(s string, key []byte) string {
	return shift(s, key, 1, absoluteIndex)
}

// TextDecrypt decrypts the lines of a binary "text" hunk. Unlike
// NestDecrypt, the XOR term uses the position within the key.
func TextDecrypt(s string, key []byte) string {
	return shift(s, key, -1, keyIndex)
}

// TextEncrypt is the inverse of TextDecrypt.
func TextEncrypt(s string, key []byte) string {
	return shift(s, key, 1, keyIndex)
}

type indexMode int

const (
	absoluteIndex indexMode = iota
	keyIndex
)

func shift(s string, key []byte, dir int, mode indexMode) string {
	if len(key) == 0 {
		return s
	}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		k := i % len(key)
		x := i + 40
		if mode == keyIndex {
			x = k + 40
		}
		c := int(s[i]) + dir*(int(key[k])^x)
		out[i] = byte(fold(c))
	}
	return string(out)
}

// fold brings c back into the 32..127 window by steps of 96.
func fold(c int) int {
	for c > 127 {
		c -= 96
	}
	for c < 32 {
		c += 96
	}
	return c
}
