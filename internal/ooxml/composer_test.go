package ooxml

import (
	"strings"
	"testing"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
)

func TestEmbedReplacesPlaceholderParagraph(t *testing.T) {
	main := NewWordPackage("Intro paragraph", "BODY", "Closing paragraph")
	embed := NewWordPackage("Embedded first", "Embedded second")

	result, err := NewComposer(nil).Embed(main, embed, "BODY")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if result.Status != EmbedOK {
		t.Fatalf("result = %s, want success", result)
	}

	data, _ := main.Part("word/document.xml")
	body := string(data)
	for _, want := range []string{"Intro paragraph", "Embedded first", "Embedded second", "Closing paragraph"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "BODY") {
		t.Error("placeholder marker still present after composition")
	}

	// Embed body elements must appear where the placeholder was.
	if strings.Index(body, "Embedded first") > strings.Index(body, "Closing paragraph") {
		t.Error("embedded content inserted at the wrong position")
	}
	if strings.Index(body, "Intro paragraph") > strings.Index(body, "Embedded first") {
		t.Error("embedded content inserted before the preceding paragraph")
	}
}

func TestEmbedDoesNotCopySectionProperties(t *testing.T) {
	main := NewWordPackage("BODY")
	embed := NewWordPackage("content")

	if _, err := NewComposer(nil).Embed(main, embed, "BODY"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	data, _ := main.Part("word/document.xml")
	if strings.Count(string(data), "<w:sectPr") != 1 {
		t.Errorf("embed sectPr leaked into main body:\n%s", data)
	}
}

func TestEmbedPlaceholderNotFound(t *testing.T) {
	main := NewWordPackage("no marker here")
	embed := NewWordPackage("content")

	result, err := NewComposer(nil).Embed(main, embed, "BODY")
	if err != nil {
		t.Fatalf("not-found must not be an error: %v", err)
	}
	if result.Status != EmbedNotFound {
		t.Errorf("status = %v, want not-found", result.Status)
	}
	if got := result.String(); got != "BODY: not-found" {
		t.Errorf("result string = %q", got)
	}
}

func TestEmbedIntoNonWordPackageFails(t *testing.T) {
	main := &Package{kind: KindSpreadsheet, parts: map[string][]byte{}}
	embed := NewWordPackage("content")

	_, err := NewComposer(nil).Embed(main, embed, "BODY")
	if !derrors.IsKind(err, derrors.KindUnsupportedEmbedTarget) {
		t.Fatalf("err = %v, want unsupported_embed_target", err)
	}
}

func TestEmbedWrongTypeSource(t *testing.T) {
	main := NewWordPackage("BODY")
	embed := &Package{kind: KindPresentation, parts: map[string][]byte{}}

	result, err := NewComposer(nil).Embed(main, embed, "BODY")
	if err != nil {
		t.Fatalf("wrong-type source must not be an error: %v", err)
	}
	if result.Status != EmbedWrongType {
		t.Errorf("status = %v, want wrong-type", result.Status)
	}
}

func TestEmbedImportsNewStylesOnly(t *testing.T) {
	main := NewWordPackage("BODY")
	embed := NewWordPackage("content")
	embedStyles := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="Normal"><w:name w:val="Different Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="Quote"><w:name w:val="Quote"/></w:style>
</w:styles>`
	embed.SetPart("word/styles.xml", []byte(embedStyles))

	if _, err := NewComposer(nil).Embed(main, embed, "BODY"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	data, _ := main.Part("word/styles.xml")
	styles := string(data)
	if !strings.Contains(styles, `w:styleId="Quote"`) {
		t.Error("new style not imported")
	}
	if strings.Contains(styles, "Different Normal") {
		t.Error("existing styleId was overwritten by the embed's definition")
	}
	if strings.Count(styles, `w:styleId="Normal"`) != 1 {
		t.Error("styleId collision produced a duplicate definition")
	}
}

func TestEmbedMergesNumberingById(t *testing.T) {
	numbering := func(abstractID, numID string) string {
		return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:abstractNum w:abstractNumId="` + abstractID + `"/><w:num w:numId="` + numID + `"><w:abstractNumId w:val="` + abstractID + `"/></w:num>
</w:numbering>`
	}
	main := NewWordPackage("BODY")
	main.SetPart("word/numbering.xml", []byte(numbering("0", "1")))
	embed := NewWordPackage("content")
	embed.SetPart("word/numbering.xml", []byte(numbering("0", "2")))

	if _, err := NewComposer(nil).Embed(main, embed, "BODY"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	data, _ := main.Part("word/numbering.xml")
	merged := string(data)
	if strings.Count(merged, `w:abstractNumId="0"`) < 1 {
		t.Error("abstract numbering lost")
	}
	if strings.Count(merged, `<w:abstractNum `) != 1 {
		t.Errorf("duplicate abstractNum imported:\n%s", merged)
	}
	if !strings.Contains(merged, `w:numId="2"`) {
		t.Error("new num definition not imported")
	}
}

func TestEmbedImportsImagesWithRemappedRelationships(t *testing.T) {
	main := NewWordPackage("BODY")
	embed := NewWordPackage()
	embedDoc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>
<w:p><w:r><w:drawing><w:blip r:embed="rId9"/></w:drawing></w:r></w:p>
<w:sectPr/></w:body></w:document>`
	embedRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId9" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/photo.png"/></Relationships>`
	embed.SetPart("word/document.xml", []byte(embedDoc))
	embed.SetPart("word/_rels/document.xml.rels", []byte(embedRels))
	embed.SetPart("word/media/photo.png", []byte{0x89, 'P', 'N', 'G'})

	result, err := NewComposer(nil).Embed(main, embed, "BODY")
	if err != nil || result.Status != EmbedOK {
		t.Fatalf("Embed failed: %v / %v", err, result)
	}

	if len(main.PartNames("word/media/")) != 1 {
		t.Fatal("image part not imported")
	}
	relsData, _ := main.Part("word/_rels/document.xml.rels")
	if !strings.Contains(string(relsData), "media/import1.png") {
		t.Errorf("image relationship not registered:\n%s", relsData)
	}
	docData, _ := main.Part("word/document.xml")
	if strings.Contains(string(docData), `r:embed="rId9"`) {
		t.Error("cloned drawing still references the embed's relationship id")
	}
	ctData, _ := main.Part("[Content_Types].xml")
	if !strings.Contains(string(ctData), `Extension="png"`) {
		t.Error("png content type default not ensured")
	}
}

func TestFindPlaceholderContainerSearchOrder(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:fldSimple w:instr="BODY"><w:r><w:t>field</w:t></w:r></w:fldSimple></w:p>
<w:p><w:r><w:t>plain BODY text</w:t></w:r></w:p>
<w:sectPr/></w:body></w:document>`
	p := NewWordPackage()
	p.SetPart("word/document.xml", []byte(docXML))
	doc, err := p.XMLPart("word/document.xml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	container := findPlaceholderContainer(doc, "BODY")
	if container == nil {
		t.Fatal("container not found")
	}
	// Plain paragraph text takes precedence over field instructions.
	if got := paragraphText(container); !strings.Contains(got, "plain BODY text") {
		t.Errorf("container text = %q, plain text paragraph should win", got)
	}
}
