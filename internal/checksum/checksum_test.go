package checksum

import "testing"

func TestCRC16_ARCCheckValue(t *testing.T) {
	data := append([]byte("123456789"), 0, 0)
	if got := CRC16(data); got != 0xBB3D {
		t.Errorf("CRC16 = %#04x, want 0xbb3d", got)
	}
}

func TestCRC16_ExcludesTrailingTwoBytes(t *testing.T) {
	a := []byte("hint file body\x1a\x01\x02")
	b := []byte("hint file body\x1a\xff\xfe")
	if CRC16(a) != CRC16(b) {
		t.Error("trailing two bytes must not affect the checksum")
	}
	c := []byte("hint file bodX\x1a\x01\x02")
	if CRC16(a) == CRC16(c) {
		t.Error("body change should affect the checksum")
	}
}

func TestCRC16_Deterministic(t *testing.T) {
	data := []byte("UHS\r\nsome title\r\n\x1a\x00\x00")
	if CRC16(data) != CRC16(data) {
		t.Error("not deterministic")
	}
}

func TestCorrected_Quirk(t *testing.T) {
	if got := Corrected(0x7FFF); got != 0x7FFF {
		t.Errorf("Corrected(0x7fff) = %#04x", got)
	}
	if got := Corrected(0x8000); got != 0x8100 {
		t.Errorf("Corrected(0x8000) = %#04x", got)
	}
	if got := Corrected(0xFF10); got != 0x0010 {
		t.Errorf("Corrected(0xff10) = %#04x, want wrap to 0x0010", got)
	}
}

func TestSealAndValid(t *testing.T) {
	data := append([]byte("123456789"), 0, 0)
	if Valid(data) {
		t.Fatal("unsealed data should not validate")
	}
	Seal(data)
	stored, ok := Stored(data)
	if !ok || stored != 0xBC3D {
		t.Errorf("stored = %#04x, want 0xbc3d", stored)
	}
	if !Valid(data) {
		t.Error("sealed data should validate")
	}
}

func TestValid_TooShort(t *testing.T) {
	if Valid([]byte{1}) {
		t.Error("one byte cannot carry a checksum")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("abc"))
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	if a != Fingerprint([]byte("abc")) {
		t.Error("fingerprint not deterministic")
	}
	if a == Fingerprint([]byte("abd")) {
		t.Error("different input, same fingerprint")
	}
}
