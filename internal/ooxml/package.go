// Package ooxml provides a narrow handle over zip-based office document
// packages (word-processing, spreadsheet, presentation): custom-property
// discovery and replacement, field-reference refresh, and body composition.
package ooxml

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
)

// Kind identifies the office package type.
type Kind int

const (
	KindUnknown Kind = iota
	KindWord
	KindSpreadsheet
	KindPresentation
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindSpreadsheet:
		return "spreadsheet"
	case KindPresentation:
		return "presentation"
	default:
		return "unknown"
	}
}

// Extension returns the native file extension for the package kind.
func (k Kind) Extension() string {
	switch k {
	case KindWord:
		return ".docx"
	case KindSpreadsheet:
		return ".xlsx"
	case KindPresentation:
		return ".pptx"
	default:
		return ""
	}
}

// Main-part markers used for kind detection.
const (
	wordMainPart         = "word/document.xml"
	spreadsheetMainPart  = "xl/workbook.xml"
	presentationMainPart = "ppt/presentation.xml"

	customPropsPart  = "docProps/custom.xml"
	contentTypesPart = "[Content_Types].xml"
	wordSettingsPart = "word/settings.xml"
	wordStylesPart   = "word/styles.xml"
	wordNumberingPart = "word/numbering.xml"
	wordRelsPart     = "word/_rels/document.xml.rels"
	wordMediaPrefix  = "word/media/"
)

// Package is an in-memory office document package. Parts are kept as raw
// bytes; XML parts are parsed on demand.
type Package struct {
	kind  Kind
	order []string // archive entry order, preserved on save
	parts map[string][]byte
}

// Open reads a package from disk.
func Open(path string) (*Package, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read package %s: %w", path, err)
	}
	return Read(bytes.NewReader(data), int64(len(data)))
}

// Read parses a package from a reader.
func Read(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, derrors.UnsupportedPackage("not a zip-based package").WithCause(err)
	}

	p := &Package{parts: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %s: %w", f.Name, err)
		}
		p.parts[f.Name] = data
		p.order = append(p.order, f.Name)
	}

	switch {
	case p.Has(wordMainPart):
		p.kind = KindWord
	case p.Has(spreadsheetMainPart):
		p.kind = KindSpreadsheet
	case p.Has(presentationMainPart):
		p.kind = KindPresentation
	default:
		return nil, derrors.UnsupportedPackage("zip archive has no recognized office main part")
	}
	return p, nil
}

// Kind returns the detected package kind.
func (p *Package) Kind() Kind { return p.kind }

// Has reports whether a part exists.
func (p *Package) Has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Part returns a part's raw bytes.
func (p *Package) Part(name string) ([]byte, bool) {
	data, ok := p.parts[name]
	return data, ok
}

// SetPart replaces or adds a part.
func (p *Package) SetPart(name string, data []byte) {
	if _, exists := p.parts[name]; !exists {
		p.order = append(p.order, name)
	}
	p.parts[name] = data
}

// PartNames returns the names of all parts with the given prefix, sorted.
func (p *Package) PartNames(prefix string) []string {
	var names []string
	for name := range p.parts {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// XMLPart parses a part as an XML document. The etree round trip preserves
// namespace prefixes, which OOXML consumers require.
func (p *Package) XMLPart(name string) (*etree.Document, error) {
	data, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s not present", name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse part %s: %w", name, err)
	}
	return doc, nil
}

// SaveXMLPart serializes an XML document back into the package.
func (p *Package) SaveXMLPart(name string, doc *etree.Document) error {
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serialize part %s: %w", name, err)
	}
	p.SetPart(name, data)
	return nil
}

// Save writes the package to disk.
func (p *Package) Save(path string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create package %s: %w", path, err)
	}
	if err := p.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write serializes the package as a zip archive, preserving part order.
func (p *Package) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range p.order {
		data, ok := p.parts[name]
		if !ok {
			continue
		}
		pw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := pw.Write(data); err != nil {
			return fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}
	return zw.Close()
}

// bodyParts returns the part names holding word-processing body content:
// the main document plus all headers and footers.
func (p *Package) bodyParts() []string {
	if p.kind != KindWord {
		return nil
	}
	parts := []string{wordMainPart}
	for _, name := range p.PartNames("word/") {
		base := strings.TrimPrefix(name, "word/")
		if strings.Contains(base, "/") {
			continue
		}
		if strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer") {
			if strings.HasSuffix(base, ".xml") {
				parts = append(parts, name)
			}
		}
	}
	return parts
}
