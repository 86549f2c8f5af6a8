package snapshot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/starford/uhskit/internal/cipher"
	"github.com/starford/uhskit/internal/parser"
)

func parse88a(t *testing.T) *parser.Result {
	t.Helper()
	data := "UHS\nTitle\n3\n4\nSubj\n3\nQuest\n5\n" + cipher.SimpleEncrypt("Hint") + "\nCredits\n"
	res, err := parser.Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestCapture_Outline(t *testing.T) {
	s := Capture(parse88a(t))
	if s.Title != "Title" || s.Format != "88a" || s.CRC != "absent" {
		t.Errorf("header = %+v", s)
	}
	// Root, Subject, Question, Hint, Version, VersionData, Credit, CreditData.
	if s.Nodes != 8 {
		t.Errorf("nodes = %d, want 8", s.Nodes)
	}
	if got := s.Root.Children[0].Children[0].Children[0].Text; got != "Hint" {
		t.Errorf("hint = %q", got)
	}
	if got := s.Root.Children[0].Decorator; got != "identity" {
		t.Errorf("decorator = %q", got)
	}
}

func TestEncodeDecode_AllCompressions(t *testing.T) {
	s := Capture(parse88a(t))
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		blob, err := s.Encode(c)
		if err != nil {
			t.Fatalf("%s: encode: %v", c, err)
		}
		got, err := Decode(blob)
		if err != nil {
			t.Fatalf("%s: decode: %v", c, err)
		}
		if got.Title != s.Title || got.Nodes != s.Nodes || len(got.Root.Children) != len(s.Root.Children) {
			t.Errorf("%s: decoded %+v", c, got)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	a, _ := Capture(parse88a(t)).Encode(CompressionZstd)
	b, _ := Capture(parse88a(t)).Encode(CompressionZstd)
	if !bytes.Equal(a, b) {
		t.Error("same tree should encode to the same bytes")
	}
}

func TestPack_CompressesRepetitiveData(t *testing.T) {
	data := []byte(strings.Repeat("hint text ", 500))
	for _, c := range []Compression{CompressionLZ4, CompressionZstd} {
		blob, err := pack(data, c)
		if err != nil {
			t.Fatal(err)
		}
		if Compression(blob[0]) != c || len(blob) >= len(data) {
			t.Errorf("%s: tag %d, %d bytes", c, blob[0], len(blob))
		}
		out, err := unpack(blob)
		if err != nil || !bytes.Equal(out, data) {
			t.Errorf("%s: unpack mismatch, err=%v", c, err)
		}
	}
}

func TestPack_IncompressibleFallsBackToNone(t *testing.T) {
	blob, err := pack([]byte("ab"), CompressionZstd)
	if err != nil {
		t.Fatal(err)
	}
	if Compression(blob[0]) != CompressionNone {
		t.Errorf("tag = %s, want none", Compression(blob[0]))
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"none": CompressionNone, "lz4": CompressionLZ4, "zstd": CompressionZstd} {
		got, err := ParseCompression(name)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("expected error for gzip")
	}
}

func TestWalkAndFind(t *testing.T) {
	s := Capture(parse88a(t))
	var hintPath []string
	s.Walk(func(n *Node, path []string) {
		if n.Type == "Hint" {
			hintPath = path
		}
	})
	if strings.Join(hintPath, "/") != "Title/Subj/Quest" {
		t.Errorf("path = %v", hintPath)
	}
	if s.Find(12345) != nil {
		t.Error("unknown id should not be found")
	}
}
