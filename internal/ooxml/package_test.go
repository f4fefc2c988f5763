package ooxml

import (
	"archive/zip"
	"bytes"
	"testing"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
)

// roundTrip serializes a package and reads it back, exercising the zip
// writer and the kind detection on the result.
func roundTrip(t *testing.T, p *Package) *Package {
	t.Helper()
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	reread, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return reread
}

func TestKindDetection(t *testing.T) {
	p := roundTrip(t, NewWordPackage("hello"))
	if p.Kind() != KindWord {
		t.Errorf("kind = %s, want word", p.Kind())
	}
	if p.Kind().Extension() != ".docx" {
		t.Errorf("extension = %q, want .docx", p.Kind().Extension())
	}
}

func TestReadRejectsUnknownArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("readme.txt")
	_, _ = w.Write([]byte("not an office package"))
	_ = zw.Close()

	_, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if !derrors.IsKind(err, derrors.KindUnsupportedPackage) {
		t.Fatalf("err = %v, want unsupported_package_kind", err)
	}
}

func TestReadRejectsNonZip(t *testing.T) {
	data := []byte("plain text, not a zip archive at all")
	_, err := Read(bytes.NewReader(data), int64(len(data)))
	if !derrors.IsKind(err, derrors.KindUnsupportedPackage) {
		t.Fatalf("err = %v, want unsupported_package_kind", err)
	}
}

func TestSetPartPreservesOrder(t *testing.T) {
	p := NewWordPackage()
	before := len(p.order)
	p.SetPart("word/media/image1.png", []byte{0x89, 'P', 'N', 'G'})
	if len(p.order) != before+1 {
		t.Fatalf("order length = %d, want %d", len(p.order), before+1)
	}
	// Overwriting must not duplicate the entry.
	p.SetPart("word/media/image1.png", []byte{1, 2, 3})
	if len(p.order) != before+1 {
		t.Fatalf("overwrite duplicated order entry")
	}
	reread := roundTrip(t, p)
	data, ok := reread.Part("word/media/image1.png")
	if !ok || len(data) != 3 {
		t.Fatalf("part lost in round trip: ok=%v len=%d", ok, len(data))
	}
}

func TestBodyParts(t *testing.T) {
	p := NewWordPackage("body")
	p.SetPart("word/header1.xml", []byte(`<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`))
	p.SetPart("word/footer2.xml", []byte(`<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`))
	p.SetPart("word/media/header_image.png", []byte{1})

	parts := p.bodyParts()
	want := map[string]bool{
		"word/document.xml": true,
		"word/header1.xml":  true,
		"word/footer2.xml":  true,
	}
	if len(parts) != len(want) {
		t.Fatalf("bodyParts = %v, want exactly %v", parts, want)
	}
	for _, name := range parts {
		if !want[name] {
			t.Errorf("unexpected body part %s", name)
		}
	}
}
