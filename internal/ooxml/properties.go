package ooxml

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// Custom-property pids start at 2 per the OOXML custom-properties part
// convention; pid 1 is reserved.
const firstPropertyPID = 2

const customPropsFmtid = "{D5CDD505-2E9C-101B-9397-08002B2CF9AE}"

const emptyCustomPropsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/custom-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"></Properties>`

// CustomPropertyNames returns the deduplicated names of all custom
// properties declared in the package's metadata part, in declaration order.
// A package without a custom-properties part has no placeholders.
func CustomPropertyNames(p *Package) ([]string, error) {
	if !p.Has(customPropsPart) {
		return nil, nil
	}
	doc, err := p.XMLPart(customPropsPart)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var names []string
	for _, prop := range root.SelectElements("property") {
		name := prop.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// CustomPropertyValues returns the current name to value mapping of all
// declared custom properties. Values are the text content of the property's
// variant element regardless of its declared type.
func CustomPropertyValues(p *Package) (map[string]string, error) {
	values := make(map[string]string)
	if !p.Has(customPropsPart) {
		return values, nil
	}
	doc, err := p.XMLPart(customPropsPart)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return values, nil
	}
	for _, prop := range root.SelectElements("property") {
		name := prop.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		if variant := firstChildElement(prop); variant != nil {
			values[name] = variant.Text()
		}
	}
	return values, nil
}

// SetCustomProperty creates or overwrites a custom property. Values are
// always stored as text (vt:lpwstr) regardless of any previously declared
// type.
func (p *Package) SetCustomProperty(name, value string) error {
	if !p.Has(customPropsPart) {
		p.SetPart(customPropsPart, []byte(emptyCustomPropsXML))
	}
	doc, err := p.XMLPart(customPropsPart)
	if err != nil {
		return err
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("custom properties part has no root element")
	}

	for _, prop := range root.SelectElements("property") {
		if prop.SelectAttrValue("name", "") == name {
			setPropertyText(prop, value)
			return p.SaveXMLPart(customPropsPart, doc)
		}
	}

	pid := firstPropertyPID
	for _, prop := range root.SelectElements("property") {
		if v, err := strconv.Atoi(prop.SelectAttrValue("pid", "")); err == nil && v >= pid {
			pid = v + 1
		}
	}
	prop := root.CreateElement("property")
	prop.CreateAttr("fmtid", customPropsFmtid)
	prop.CreateAttr("pid", strconv.Itoa(pid))
	prop.CreateAttr("name", name)
	setPropertyText(prop, value)
	return p.SaveXMLPart(customPropsPart, doc)
}

// setPropertyText replaces a property element's variant child with a single
// lpwstr text value.
func setPropertyText(prop *etree.Element, value string) {
	for _, child := range prop.ChildElements() {
		prop.RemoveChild(child)
	}
	variant := prop.CreateElement("vt:lpwstr")
	variant.SetText(value)
}

func firstChildElement(el *etree.Element) *etree.Element {
	children := el.ChildElements()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}
