// Package emailhtml rewrites converter HTML to be email-client-safe:
// referenced images become embedded data URIs, page-layout rules that email
// clients ignore are stripped, and converter-specific field markers are
// removed.
package emailhtml

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// Processor performs the EmailHTML post-processing pass.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a processor. A nil logger falls back to slog.Default.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger}
}

// Process rewrites raw converter HTML into a self-contained email-safe
// document. assetDir is the directory the converter wrote its image files
// to. Image embedding runs strictly before artifact cleanup so markers that
// reference image files are still intact when images are resolved.
func (p *Processor) Process(htmlBytes []byte, assetDir string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, fmt.Errorf("parse converter HTML: %w", err)
	}

	p.embedImages(doc, assetDir)
	p.applyEmailStyling(doc)
	p.stripConverterArtifacts(doc)

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return nil, fmt.Errorf("render processed HTML: %w", err)
	}
	return out.Bytes(), nil
}

// embedImages replaces every resolvable <img src> with a base64 data URI.
// Unresolvable references are left untouched and logged, never fatal.
func (p *Processor) embedImages(doc *html.Node, assetDir string) {
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "img" {
			return
		}
		for i, attr := range n.Attr {
			if attr.Key != "src" || attr.Val == "" || strings.HasPrefix(attr.Val, "data:") {
				continue
			}
			path, ok := resolveImage(assetDir, attr.Val)
			if !ok {
				p.logger.Warn("Image reference could not be resolved, leaving as-is",
					logfields.Path(attr.Val))
				continue
			}
			data, err := os.ReadFile(path) // #nosec G304 -- resolved under assetDir
			if err != nil {
				p.logger.Warn("Image file unreadable, leaving reference as-is",
					logfields.Path(path), logfields.Error(err))
				continue
			}
			n.Attr[i].Val = "data:" + imageMIME(path) + ";base64," +
				base64.StdEncoding.EncodeToString(data)
		}
	})
}

// resolveImage tries successive strategies: the exact relative path, the
// URL-decoded path, a directory search by file name, and finally an
// extension-by-extension fuzzy match on the base name. The fuzzy strategies
// are heuristic and may pick the wrong candidate when names collide; that
// ambiguity is accepted as best-effort behavior.
func resolveImage(assetDir, src string) (string, bool) {
	if strings.Contains(src, "://") {
		return "", false
	}

	candidate := filepath.Join(assetDir, filepath.Clean(src))
	if fileExists(candidate) {
		return candidate, true
	}

	if decoded, err := url.QueryUnescape(src); err == nil && decoded != src {
		candidate = filepath.Join(assetDir, filepath.Clean(decoded))
		if fileExists(candidate) {
			return candidate, true
		}
	}

	name := filepath.Base(src)
	if found, ok := searchByName(assetDir, name); ok {
		return found, true
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for ext := range imageMIMETypes {
		if found, ok := searchByName(assetDir, stem+ext); ok {
			return found, true
		}
	}
	return "", false
}

// searchByName walks assetDir looking for a file with the exact name.
func searchByName(assetDir, name string) (string, bool) {
	var found string
	_ = filepath.WalkDir(assetDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if found == "" && d.Name() == name {
			found = path
		}
		return nil
	})
	return found, found != ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var imageMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
}

func imageMIME(path string) string {
	if mt, ok := imageMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}

var (
	pageRuleRE  = regexp.MustCompile(`(?s)@page\s*[^{]*\{[^}]*\}`)
	marginCMRE  = regexp.MustCompile(`(margin[a-z-]*\s*:\s*[^;}"]*?)(\d+(?:\.\d+)?)cm`)
	marginInRE  = regexp.MustCompile(`(margin[a-z-]*\s*:\s*[^;}"]*?)(\d+(?:\.\d+)?)in`)
	defaultCSS  = "body { font-family: Arial, Helvetica, sans-serif; margin: 0; padding: 16px; } table { border-collapse: collapse; }"
)

// applyEmailStyling injects compatibility metadata and rewrites style rules
// that email clients mishandle.
func (p *Processor) applyEmailStyling(doc *html.Node) {
	head := findElement(doc, "head")
	if head != nil {
		ensureCharset(head)
		ensureNamedMeta(head, "viewport", "width=device-width, initial-scale=1.0")
	}

	hasStyle := false
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "style" {
			return
		}
		hasStyle = true
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			n.FirstChild.Data = rewriteCSS(n.FirstChild.Data)
		}
	})

	// Inline style attributes carry the converter's absolute margins too.
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		for i, attr := range n.Attr {
			if attr.Key == "style" {
				n.Attr[i].Val = rewriteCSS(attr.Val)
			}
		}
	})

	if !hasStyle && head != nil {
		style := &html.Node{Type: html.ElementNode, Data: "style"}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: defaultCSS})
		head.AppendChild(style)
	}
}

// rewriteCSS strips page-size rules and converts absolute-unit margins to
// pixel equivalents (96px per inch, 37.8px per centimeter).
func rewriteCSS(css string) string {
	css = pageRuleRE.ReplaceAllString(css, "")
	css = marginCMRE.ReplaceAllStringFunc(css, func(m string) string {
		return replaceUnit(marginCMRE, m, 37.8)
	})
	css = marginInRE.ReplaceAllStringFunc(css, func(m string) string {
		return replaceUnit(marginInRE, m, 96)
	})
	return css
}

func replaceUnit(re *regexp.Regexp, match string, factor float64) string {
	groups := re.FindStringSubmatch(match)
	if len(groups) != 3 {
		return match
	}
	var value float64
	if _, err := fmt.Sscanf(groups[2], "%f", &value); err != nil {
		return match
	}
	return fmt.Sprintf("%s%dpx", groups[1], int(value*factor+0.5))
}

// Converter wrapper tags around unresolved field codes; replaced by their
// inner text.
var fieldMarkerTags = map[string]bool{
	"sdfield": true,
	"o:p":     true,
}

// stripConverterArtifacts removes generator metadata and unwraps leftover
// field-code wrapper tags.
func (p *Processor) stripConverterArtifacts(doc *html.Node) {
	var remove []*html.Node
	var unwrap []*html.Node

	walk(doc, func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			remove = append(remove, n)
		case html.ElementNode:
			if fieldMarkerTags[strings.ToLower(n.Data)] {
				unwrap = append(unwrap, n)
				return
			}
			if n.Data == "meta" && strings.EqualFold(getAttr(n, "name"), "generator") {
				remove = append(remove, n)
			}
		}
	})

	// Unwrapping hoists the wrapper's content in place, so field text and
	// any already-embedded images survive.
	for _, n := range unwrap {
		parent := n.Parent
		if parent == nil {
			continue
		}
		for child := n.FirstChild; child != nil; {
			next := child.NextSibling
			n.RemoveChild(child)
			parent.InsertBefore(child, n)
			child = next
		}
		parent.RemoveChild(n)
	}
	for _, n := range remove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.Data == tag {
			found = c
		}
	})
	return found
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// ensureCharset guarantees exactly one charset declaration. Converters emit
// either <meta charset=...> or the legacy
// <meta http-equiv="Content-Type" content="text/html; charset=..."> form, and
// both count.
func ensureCharset(head *html.Node) {
	exists := false
	walk(head, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "meta" {
			return
		}
		if getAttr(n, "charset") != "" {
			exists = true
			return
		}
		if strings.EqualFold(getAttr(n, "http-equiv"), "content-type") &&
			strings.Contains(strings.ToLower(getAttr(n, "content")), "charset=") {
			exists = true
		}
	})
	if exists {
		return
	}
	meta := &html.Node{Type: html.ElementNode, Data: "meta",
		Attr: []html.Attribute{{Key: "charset", Val: "utf-8"}}}
	if head.FirstChild != nil {
		head.InsertBefore(meta, head.FirstChild)
	} else {
		head.AppendChild(meta)
	}
}

// ensureNamedMeta guarantees a <meta name=... content=...> element.
func ensureNamedMeta(head *html.Node, name, content string) {
	exists := false
	walk(head, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" && strings.EqualFold(getAttr(n, "name"), name) {
			exists = true
		}
	})
	if exists {
		return
	}
	head.AppendChild(&html.Node{Type: html.ElementNode, Data: "meta",
		Attr: []html.Attribute{{Key: "name", Val: name}, {Key: "content", Val: content}}})
}
