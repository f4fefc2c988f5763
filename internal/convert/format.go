// Package convert turns office packages into their export encodings by
// driving an external headless conversion engine.
package convert

import (
	"strings"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
)

// Format is the closed set of output encodings.
type Format string

const (
	// FormatOriginal returns the processed package unchanged.
	FormatOriginal Format = "original"
	// FormatNative converts to the modern native package format
	// (legacy .doc/.xls/.ppt inputs are upgraded).
	FormatNative Format = "native"
	// FormatHTML produces the converter's raw HTML output.
	FormatHTML Format = "html"
	// FormatEmailHTML produces HTML that is post-processed for email
	// clients downstream.
	FormatEmailHTML Format = "emailhtml"
	// FormatPDF produces a fixed-layout page document.
	FormatPDF Format = "pdf"
)

// ParseFormat validates a caller-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatOriginal:
		return FormatOriginal, nil
	case FormatNative:
		return FormatNative, nil
	case FormatHTML:
		return FormatHTML, nil
	case FormatEmailHTML:
		return FormatEmailHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	case "":
		return FormatOriginal, nil
	default:
		return "", derrors.ValidationError("unknown export format").WithContext("format", s)
	}
}

// nativeUpgrades maps legacy extensions to their packaged successors.
var nativeUpgrades = map[string]string{
	".doc": ".docx",
	".xls": ".xlsx",
	".ppt": ".pptx",
}

// Extension returns the output file extension for a format given the source
// file's extension.
func (f Format) Extension(sourceExt string) string {
	sourceExt = strings.ToLower(sourceExt)
	switch f {
	case FormatHTML, FormatEmailHTML:
		return ".html"
	case FormatPDF:
		return ".pdf"
	case FormatNative:
		if up, ok := nativeUpgrades[sourceExt]; ok {
			return up
		}
		return sourceExt
	default:
		return sourceExt
	}
}

// converterFilter returns the --convert-to argument for the external engine.
func (f Format) converterFilter(sourceExt string) string {
	switch f {
	case FormatHTML, FormatEmailHTML:
		return "html"
	case FormatPDF:
		return "pdf"
	case FormatNative:
		return strings.TrimPrefix(f.Extension(sourceExt), ".")
	default:
		return ""
	}
}
