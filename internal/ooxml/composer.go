package ooxml

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/beevik/etree"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// EmbedStatus classifies the outcome of one embedding.
type EmbedStatus int

const (
	EmbedOK EmbedStatus = iota
	EmbedNotFound
	EmbedWrongType
	EmbedFailed
)

// EmbedResult is the per-embedding outcome. One embedding's failure never
// aborts the others; callers collect the ordered results.
type EmbedResult struct {
	Placeholder string
	Status      EmbedStatus
	Detail      string
}

func (r EmbedResult) String() string {
	switch r.Status {
	case EmbedOK:
		return r.Placeholder + ": success"
	case EmbedNotFound:
		return r.Placeholder + ": not-found"
	case EmbedWrongType:
		return r.Placeholder + ": wrong-type"
	default:
		return r.Placeholder + ": error: " + r.Detail
	}
}

// Composer splices processed packages into a main word-processing package at
// named placeholder locations, importing styles, numbering definitions, and
// embedded images to avoid collisions.
type Composer struct {
	logger *slog.Logger
}

// NewComposer creates a composer. A nil logger falls back to slog.Default.
func NewComposer(logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{logger: logger}
}

// Embed splices the embed package's body into main at the placeholder
// occurrence. The main package must be word-processing; embedding into
// spreadsheet or presentation packages is unsupported and returns an error.
// A non word-processing embed source yields a wrong-type result.
func (c *Composer) Embed(main *Package, embed *Package, placeholder string) (EmbedResult, error) {
	if main.Kind() != KindWord {
		return EmbedResult{}, derrors.UnsupportedEmbedTarget(main.Kind().String())
	}
	if embed.Kind() != KindWord {
		c.logger.Warn("Embed source is not a word-processing package",
			logfields.Placeholder(placeholder), slog.String("kind", embed.Kind().String()))
		return EmbedResult{Placeholder: placeholder, Status: EmbedWrongType}, nil
	}

	mainDoc, err := main.XMLPart(wordMainPart)
	if err != nil {
		return EmbedResult{Placeholder: placeholder, Status: EmbedFailed, Detail: err.Error()}, nil
	}
	container := findPlaceholderContainer(mainDoc, placeholder)
	if container == nil {
		c.logger.Warn("Embed placeholder not found in main body",
			logfields.Placeholder(placeholder))
		return EmbedResult{Placeholder: placeholder, Status: EmbedNotFound}, nil
	}

	embedDoc, err := embed.XMLPart(wordMainPart)
	if err != nil {
		return EmbedResult{Placeholder: placeholder, Status: EmbedFailed, Detail: err.Error()}, nil
	}
	body := bodyElement(embedDoc)
	if body == nil {
		return EmbedResult{Placeholder: placeholder, Status: EmbedFailed, Detail: "embed document has no body"}, nil
	}

	if err := importStyles(main, embed); err != nil {
		return EmbedResult{Placeholder: placeholder, Status: EmbedFailed, Detail: err.Error()}, nil
	}
	if err := importNumbering(main, embed); err != nil {
		return EmbedResult{Placeholder: placeholder, Status: EmbedFailed, Detail: err.Error()}, nil
	}
	relMap, err := importImages(main, embed)
	if err != nil {
		return EmbedResult{Placeholder: placeholder, Status: EmbedFailed, Detail: err.Error()}, nil
	}

	// Deep-clone every top-level body element except section properties,
	// remap its image relationships, and insert it before the placeholder
	// container. The container itself goes away.
	parent := container.Parent()
	idx := container.Index()
	for _, child := range body.ChildElements() {
		if child.Tag == "sectPr" {
			continue
		}
		clone := child.Copy()
		remapRelationshipIDs(clone, relMap)
		parent.InsertChildAt(idx, clone)
		idx++
	}
	parent.RemoveChildAt(idx)

	if err := main.SaveXMLPart(wordMainPart, mainDoc); err != nil {
		return EmbedResult{Placeholder: placeholder, Status: EmbedFailed, Detail: err.Error()}, nil
	}
	c.logger.Info("Embedded document at placeholder", logfields.Placeholder(placeholder))
	return EmbedResult{Placeholder: placeholder, Status: EmbedOK}, nil
}

// findPlaceholderContainer locates the element to replace, searching plain
// paragraph text first, then simple field instructions, then field-code
// elements. Returns the enclosing paragraph when one exists.
func findPlaceholderContainer(doc *etree.Document, placeholder string) *etree.Element {
	for _, para := range doc.FindElements("//w:p") {
		if strings.Contains(paragraphText(para), placeholder) {
			return para
		}
	}
	for _, fld := range doc.FindElements("//w:fldSimple") {
		if strings.Contains(fld.SelectAttrValue("w:instr", ""), placeholder) {
			return enclosingParagraph(fld)
		}
	}
	for _, it := range doc.FindElements("//w:instrText") {
		if strings.Contains(it.Text(), placeholder) {
			return enclosingParagraph(it)
		}
	}
	return nil
}

// paragraphText concatenates all text runs beneath a paragraph.
func paragraphText(para *etree.Element) string {
	var sb strings.Builder
	for _, t := range para.FindElements(".//w:t") {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// enclosingParagraph walks up to the nearest w:p ancestor, falling back to
// the element itself when none exists.
func enclosingParagraph(el *etree.Element) *etree.Element {
	for cur := el; cur != nil; cur = cur.Parent() {
		if cur.Space == "w" && cur.Tag == "p" {
			return cur
		}
	}
	return el
}

func bodyElement(doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	return root.SelectElement("w:body")
}

// importStyles copies embed style definitions whose styleId is not already
// present in the main package.
func importStyles(main, embed *Package) error {
	if !embed.Has(wordStylesPart) {
		return nil
	}
	embedDoc, err := embed.XMLPart(wordStylesPart)
	if err != nil {
		return err
	}
	if !main.Has(wordStylesPart) {
		return main.SaveXMLPart(wordStylesPart, embedDoc)
	}
	mainDoc, err := main.XMLPart(wordStylesPart)
	if err != nil {
		return err
	}
	mainRoot, embedRoot := mainDoc.Root(), embedDoc.Root()
	if mainRoot == nil || embedRoot == nil {
		return nil
	}

	existing := make(map[string]struct{})
	for _, style := range mainRoot.SelectElements("w:style") {
		existing[style.SelectAttrValue("w:styleId", "")] = struct{}{}
	}
	added := 0
	for _, style := range embedRoot.SelectElements("w:style") {
		id := style.SelectAttrValue("w:styleId", "")
		if id == "" {
			continue
		}
		if _, dup := existing[id]; dup {
			continue
		}
		mainRoot.AddChild(style.Copy())
		added++
	}
	if added == 0 {
		return nil
	}
	return main.SaveXMLPart(wordStylesPart, mainDoc)
}

// importNumbering merges abstractNum and num definitions by id, skipping
// ids already present.
func importNumbering(main, embed *Package) error {
	if !embed.Has(wordNumberingPart) {
		return nil
	}
	embedDoc, err := embed.XMLPart(wordNumberingPart)
	if err != nil {
		return err
	}
	if !main.Has(wordNumberingPart) {
		return main.SaveXMLPart(wordNumberingPart, embedDoc)
	}
	mainDoc, err := main.XMLPart(wordNumberingPart)
	if err != nil {
		return err
	}
	mainRoot, embedRoot := mainDoc.Root(), embedDoc.Root()
	if mainRoot == nil || embedRoot == nil {
		return nil
	}

	added := 0
	added += mergeNumberingElements(mainRoot, embedRoot, "w:abstractNum", "w:abstractNumId")
	added += mergeNumberingElements(mainRoot, embedRoot, "w:num", "w:numId")
	if added == 0 {
		return nil
	}
	return main.SaveXMLPart(wordNumberingPart, mainDoc)
}

func mergeNumberingElements(mainRoot, embedRoot *etree.Element, tag, idAttr string) int {
	existing := make(map[string]struct{})
	for _, el := range mainRoot.SelectElements(tag) {
		existing[el.SelectAttrValue(idAttr, "")] = struct{}{}
	}
	added := 0
	for _, el := range embedRoot.SelectElements(tag) {
		id := el.SelectAttrValue(idAttr, "")
		if id == "" {
			continue
		}
		if _, dup := existing[id]; dup {
			continue
		}
		// abstractNum elements must precede num elements; appending num
		// definitions at the end keeps that ordering.
		if tag == "w:abstractNum" {
			insertBeforeFirst(mainRoot, "w:num", el.Copy())
		} else {
			mainRoot.AddChild(el.Copy())
		}
		added++
	}
	return added
}

func insertBeforeFirst(parent *etree.Element, beforeTag string, child *etree.Element) {
	if first := parent.SelectElement(beforeTag); first != nil {
		parent.InsertChildAt(first.Index(), child)
		return
	}
	parent.AddChild(child)
}

var imageContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".emf":  "image/x-emf",
	".wmf":  "image/x-wmf",
	".svg":  "image/svg+xml",
}

// importImages copies embed media parts under fresh names, registers
// relationships in the main document, and returns the old-to-new
// relationship id map for remapping cloned body elements.
func importImages(main, embed *Package) (map[string]string, error) {
	mediaParts := embed.PartNames(wordMediaPrefix)
	if len(mediaParts) == 0 {
		return nil, nil
	}
	embedRels, err := relationshipTargets(embed)
	if err != nil {
		return nil, err
	}

	mainRelsDoc, err := main.XMLPart(wordRelsPart)
	if err != nil {
		return nil, err
	}
	mainRelsRoot := mainRelsDoc.Root()
	if mainRelsRoot == nil {
		return nil, fmt.Errorf("main relationships part has no root")
	}
	nextRel := len(mainRelsRoot.ChildElements()) + 1

	relMap := make(map[string]string)
	for i, partName := range mediaParts {
		data, _ := embed.Part(partName)
		ext := strings.ToLower(path.Ext(partName))
		newPart := fmt.Sprintf("%simport%d%s", wordMediaPrefix, i+1, ext)
		for main.Has(newPart) {
			i++
			newPart = fmt.Sprintf("%simport%d%s", wordMediaPrefix, i+1, ext)
		}
		main.SetPart(newPart, data)
		if ct, known := imageContentTypes[ext]; known {
			if err := ensureContentTypeDefault(main, strings.TrimPrefix(ext, "."), ct); err != nil {
				return nil, err
			}
		}

		newRelID := fmt.Sprintf("rId%d", nextRel)
		for usedRelationshipID(mainRelsRoot, newRelID) {
			nextRel++
			newRelID = fmt.Sprintf("rId%d", nextRel)
		}
		nextRel++
		rel := mainRelsRoot.CreateElement("Relationship")
		rel.CreateAttr("Id", newRelID)
		rel.CreateAttr("Type", "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image")
		rel.CreateAttr("Target", strings.TrimPrefix(newPart, "word/"))

		target := strings.TrimPrefix(partName, "word/")
		for oldID, oldTarget := range embedRels {
			if oldTarget == target {
				relMap[oldID] = newRelID
			}
		}
	}
	if err := main.SaveXMLPart(wordRelsPart, mainRelsDoc); err != nil {
		return nil, err
	}
	return relMap, nil
}

func usedRelationshipID(relsRoot *etree.Element, id string) bool {
	for _, rel := range relsRoot.SelectElements("Relationship") {
		if rel.SelectAttrValue("Id", "") == id {
			return true
		}
	}
	return false
}

// relationshipTargets maps relationship ids to their targets in the embed's
// main document relationships part.
func relationshipTargets(p *Package) (map[string]string, error) {
	targets := make(map[string]string)
	if !p.Has(wordRelsPart) {
		return targets, nil
	}
	doc, err := p.XMLPart(wordRelsPart)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return targets, nil
	}
	for _, rel := range root.SelectElements("Relationship") {
		targets[rel.SelectAttrValue("Id", "")] = rel.SelectAttrValue("Target", "")
	}
	return targets, nil
}

// ensureContentTypeDefault adds a Default extension mapping when absent.
func ensureContentTypeDefault(p *Package, extension, contentType string) error {
	doc, err := p.XMLPart(contentTypesPart)
	if err != nil {
		return err
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("content types part has no root")
	}
	for _, def := range root.SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), extension) {
			return nil
		}
	}
	def := root.CreateElement("Default")
	def.CreateAttr("Extension", extension)
	def.CreateAttr("ContentType", contentType)
	return p.SaveXMLPart(contentTypesPart, doc)
}

// remapRelationshipIDs rewrites r:embed and r:id attributes on a cloned
// subtree per the imported-image relationship map.
func remapRelationshipIDs(el *etree.Element, relMap map[string]string) {
	if len(relMap) == 0 {
		return
	}
	for i, attr := range el.Attr {
		if attr.Space != "r" {
			continue
		}
		if attr.Key != "embed" && attr.Key != "id" && attr.Key != "link" {
			continue
		}
		if newID, ok := relMap[attr.Value]; ok {
			el.Attr[i].Value = newID
		}
	}
	for _, child := range el.ChildElements() {
		remapRelationshipIDs(child, relMap)
	}
}
