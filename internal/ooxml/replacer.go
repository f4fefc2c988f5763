package ooxml

import (
	"log/slog"
	"strings"

	"github.com/beevik/etree"

	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// ReplaceStats reports what a ReplaceProperties call touched.
type ReplaceStats struct {
	PropertiesUpdated int
	FieldsRefreshed   int
}

// ReplaceProperties overwrites the package's custom properties with the
// given values and refreshes every field reference that displays one of
// them. Keys without a matching declared property are ignored; declared
// properties without a key are left unchanged.
//
// The package is mutated in place. Callers must operate on a disposable
// working copy, never the canonical stored template.
func ReplaceProperties(p *Package, values map[string]string) (ReplaceStats, error) {
	var stats ReplaceStats
	if len(values) == 0 {
		return stats, nil
	}

	updated, err := updateCustomProperties(p, values)
	if err != nil {
		return stats, err
	}
	stats.PropertiesUpdated = updated
	if updated == 0 {
		return stats, nil
	}

	// Field references only exist in word-processing bodies. A body part
	// that fails to parse is skipped: properties were already rewritten,
	// and viewers that recompute fields will still render correctly.
	for _, partName := range p.bodyParts() {
		refreshed, err := refreshFieldCaches(p, partName, values)
		if err != nil {
			slog.Warn("Skipping field refresh for malformed body part",
				logfields.File(partName), logfields.Error(err))
			continue
		}
		stats.FieldsRefreshed += refreshed
	}

	if p.kind == KindWord {
		if err := markUpdateFieldsOnOpen(p); err != nil {
			slog.Warn("Could not set update-fields-on-open flag", logfields.Error(err))
		}
	}
	return stats, nil
}

// updateCustomProperties overwrites declared properties present in values.
func updateCustomProperties(p *Package, values map[string]string) (int, error) {
	if !p.Has(customPropsPart) {
		return 0, nil
	}
	doc, err := p.XMLPart(customPropsPart)
	if err != nil {
		return 0, err
	}
	root := doc.Root()
	if root == nil {
		return 0, nil
	}

	updated := 0
	for _, prop := range root.SelectElements("property") {
		name := prop.SelectAttrValue("name", "")
		value, ok := values[name]
		if !ok {
			continue
		}
		setPropertyText(prop, value)
		updated++
	}
	if updated == 0 {
		return 0, nil
	}
	return updated, p.SaveXMLPart(customPropsPart, doc)
}

// refreshFieldCaches rewrites the cached display text of every DOCPROPERTY
// field in one body part, so viewers that do not recompute fields still show
// the new values.
func refreshFieldCaches(p *Package, partName string, values map[string]string) (int, error) {
	doc, err := p.XMLPart(partName)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, fld := range doc.FindElements("//w:fldSimple") {
		instr := fld.SelectAttrValue("w:instr", "")
		name := docPropertyName(instr)
		value, ok := values[name]
		if !ok {
			continue
		}
		setFieldText(fld, value)
		fld.CreateAttr("w:dirty", "true")
		refreshed++
	}

	for _, para := range doc.FindElements("//w:p") {
		refreshed += refreshComplexFields(para, values)
	}

	if refreshed == 0 {
		return 0, nil
	}
	return refreshed, p.SaveXMLPart(partName, doc)
}

// refreshComplexFields handles fldChar begin/separate/end run sequences
// within a single paragraph. The cached result runs sit between the
// separate and end characters.
func refreshComplexFields(para *etree.Element, values map[string]string) int {
	const (
		stateIdle = iota
		stateInstr  // between begin and separate
		stateCached // between separate and end
	)

	refreshed := 0
	state := stateIdle
	var instr strings.Builder
	var value string
	var matched, textSet bool
	var beginChar *etree.Element

	for _, run := range para.SelectElements("w:r") {
		if fldChar := run.SelectElement("w:fldChar"); fldChar != nil {
			switch fldChar.SelectAttrValue("w:fldCharType", "") {
			case "begin":
				state = stateInstr
				instr.Reset()
				matched = false
				textSet = false
				beginChar = fldChar
			case "separate":
				if state == stateInstr {
					state = stateCached
					name := docPropertyName(instr.String())
					value, matched = values[name]
				}
			case "end":
				if state == stateCached && matched && textSet {
					if beginChar != nil {
						beginChar.CreateAttr("w:dirty", "true")
					}
					refreshed++
				}
				state = stateIdle
			}
			continue
		}

		switch state {
		case stateInstr:
			if it := run.SelectElement("w:instrText"); it != nil {
				instr.WriteString(it.Text())
			}
		case stateCached:
			if !matched {
				continue
			}
			if t := run.SelectElement("w:t"); t != nil {
				if !textSet {
					t.SetText(value)
					preserveSpace(t, value)
					textSet = true
				} else {
					t.SetText("")
				}
			}
		}
	}
	return refreshed
}

// setFieldText sets the first cached text run under a simple field to the
// value and clears the rest.
func setFieldText(fld *etree.Element, value string) {
	first := true
	for _, t := range fld.FindElements(".//w:t") {
		if first {
			t.SetText(value)
			preserveSpace(t, value)
			first = false
			continue
		}
		t.SetText("")
	}
	if first {
		// No cached run at all; synthesize one.
		run := fld.CreateElement("w:r")
		t := run.CreateElement("w:t")
		t.SetText(value)
		preserveSpace(t, value)
	}
}

// preserveSpace marks a text run whose value has significant leading or
// trailing whitespace.
func preserveSpace(t *etree.Element, value string) {
	if strings.TrimSpace(value) != value {
		t.CreateAttr("xml:space", "preserve")
	}
}

// docPropertyName extracts the property name from a DOCPROPERTY field
// instruction such as ` DOCPROPERTY "Customer Name" \* MERGEFORMAT `.
// Returns "" when the instruction is not a DOCPROPERTY field.
func docPropertyName(instr string) string {
	fields := splitInstruction(instr)
	for i, f := range fields {
		if strings.EqualFold(f, "DOCPROPERTY") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// splitInstruction tokenizes a field instruction, honoring double-quoted
// names with embedded spaces.
func splitInstruction(instr string) []string {
	var tokens []string
	var current strings.Builder
	inQuote := false
	for _, r := range instr {
		switch {
		case r == '"':
			inQuote = !inQuote
			if !inQuote {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		case !inQuote && (r == ' ' || r == '\t'):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

const minimalSettingsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"></w:settings>`

// markUpdateFieldsOnOpen sets the document flag that tells viewers to
// recompute field results when the document is opened.
func markUpdateFieldsOnOpen(p *Package) error {
	if !p.Has(wordSettingsPart) {
		p.SetPart(wordSettingsPart, []byte(minimalSettingsXML))
	}
	doc, err := p.XMLPart(wordSettingsPart)
	if err != nil {
		return err
	}
	root := doc.Root()
	if root == nil {
		return nil
	}
	upd := root.SelectElement("w:updateFields")
	if upd == nil {
		upd = root.CreateElement("w:updateFields")
	}
	upd.CreateAttr("w:val", "true")
	return p.SaveXMLPart(wordSettingsPart, doc)
}
