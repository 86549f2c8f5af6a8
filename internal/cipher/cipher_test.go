package cipher

import (
	"bytes"
	"strings"
	"testing"
)

func printable() string {
	var sb strings.Builder
	for c := 32; c <= 126; c++ {
		sb.WriteByte(byte(c))
	}
	return sb.String()
}

func TestSimpleEncrypt_KnownVector(t *testing.T) {
	if got := SimpleEncrypt("Hint"); got != "4tGJ" {
		t.Errorf("SimpleEncrypt(Hint) = %q, want %q", got, "4tGJ")
	}
	if got := SimpleDecrypt("4tGJ"); got != "Hint" {
		t.Errorf("SimpleDecrypt(4tGJ) = %q, want %q", got, "Hint")
	}
}

func TestSimple_RoundTrip(t *testing.T) {
	in := printable()
	if got := SimpleDecrypt(SimpleEncrypt(in)); got != in {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", got, in)
	}
}

func TestSimple_ControlCharsPassThrough(t *testing.T) {
	in := "a\tb\x01"
	enc := SimpleEncrypt(in)
	if enc[1] != '\t' || enc[3] != 0x01 {
		t.Errorf("control chars changed: %q", enc)
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	a := DeriveKey("The Secret of Monkey Island")
	b := DeriveKey("The Secret of Monkey Island")
	if !bytes.Equal(a, b) {
		t.Fatalf("keys differ: %v vs %v", a, b)
	}
	if len(a) != len("The Secret of Monkey Island") {
		t.Errorf("len = %d", len(a))
	}
	for i, k := range a {
		if k < 32 || k > 127 {
			t.Errorf("key[%d] = %d outside 32..127", i, k)
		}
	}
}

func TestDeriveKey_KnownValue(t *testing.T) {
	// 'A' (65) + ('k' ^ 40 = 67) = 132, folded to 36.
	if got := DeriveKey("A"); !bytes.Equal(got, []byte{36}) {
		t.Errorf("DeriveKey(A) = %v, want [36]", got)
	}
}

func TestNest_RoundTrip(t *testing.T) {
	key := DeriveKey("Loom")
	in := strings.Repeat(printable(), 3)
	if got := NestDecrypt(NestEncrypt(in, key), key); got != in {
		t.Errorf("nest round trip mismatch")
	}
}

func TestText_RoundTrip(t *testing.T) {
	key := DeriveKey("Full Throttle")
	in := strings.Repeat(printable(), 3)
	if got := TextDecrypt(TextEncrypt(in, key), key); got != in {
		t.Errorf("text round trip mismatch")
	}
}

func TestNestAndText_DivergePastKeyLength(t *testing.T) {
	key := DeriveKey("Sam")
	in := "abcdefghijkl"
	nest := NestEncrypt(in, key)
	text := TextEncrypt(in, key)
	if nest[:len(key)] != text[:len(key)] {
		t.Errorf("first key-length bytes should agree: %q vs %q", nest[:3], text[:3])
	}
	if nest == text {
		t.Error("nest and text ciphers must differ once the index exceeds the key length")
	}
}

func TestCiphertext_StaysPrintable(t *testing.T) {
	key := DeriveKey("Day of the Tentacle")
	for _, enc := range []string{
		SimpleEncrypt(printable()),
		NestEncrypt(printable(), key),
		TextEncrypt(printable(), key),
	} {
		for i := 0; i < len(enc); i++ {
			if enc[i] < 32 || enc[i] > 127 {
				t.Fatalf("byte %d = %d outside 32..127", i, enc[i])
			}
		}
	}
}

func TestEmptyKey_Identity(t *testing.T) {
	if got := NestDecrypt("abc", nil); got != "abc" {
		t.Errorf("got %q", got)
	}
}
