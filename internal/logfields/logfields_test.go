package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"TemplateID", KeyTemplateID, "tpl-1", TemplateID("tpl-1")},
		{"ArtifactID", KeyArtifactID, "a-1", ArtifactID("a-1")},
		{"DocumentID", KeyDocumentID, "d-1", DocumentID("d-1")},
		{"Placeholder", KeyPlaceholder, "BODY", Placeholder("BODY")},
		{"Format", KeyFormat, "html", Format("html")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"File", KeyFile, "out.docx", File("out.docx")},
		{"Method", KeyMethod, "GET", Method("GET")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.attr.Key != tc.attrKey {
				t.Errorf("key = %q, want %q", tc.attr.Key, tc.attrKey)
			}
			if tc.attr.Value.String() != tc.attrVal {
				t.Errorf("value = %q, want %q", tc.attr.Value.String(), tc.attrVal)
			}
		})
	}
}

func TestErrorAttr(t *testing.T) {
	if got := Error(nil).Value.String(); got != "" {
		t.Errorf("nil error value = %q, want empty", got)
	}
	if got := Error(errors.New("boom")).Value.String(); got != "boom" {
		t.Errorf("error value = %q, want %q", got, "boom")
	}
}
