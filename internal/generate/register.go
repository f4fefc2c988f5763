package generate

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
	"git.home.luguber.info/inful/docgen/internal/logfields"
	"git.home.luguber.info/inful/docgen/internal/ooxml"
	"git.home.luguber.info/inful/docgen/internal/storage"
)

// RegisterTemplate validates an uploaded document, discovers its custom
// property placeholders and persists both the bytes and the template record.
// The returned reference carries the placeholder names in document order.
func (o *Orchestrator) RegisterTemplate(ctx context.Context, fileName string, data []byte) (*storage.TemplateRef, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !o.extensionAllowed(ext) {
		return nil, derrors.ValidationError("file extension is not accepted").WithContext("extension", ext)
	}
	if err := o.checkInputSize(int64(len(data))); err != nil {
		return nil, err.WithContext("file", fileName)
	}

	pkg, err := ooxml.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	placeholders, err := ooxml.CustomPropertyNames(pkg)
	if err != nil {
		return nil, err
	}

	docID, err := o.deps.Documents.Store(ctx, fileName, data)
	if err != nil {
		return nil, err
	}

	ref := &storage.TemplateRef{
		ID:               uuid.NewString(),
		Name:             strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)),
		SourceDocumentID: docID,
		PlaceholderNames: placeholders,
		Kind:             pkg.Kind().String(),
		CreatedAt:        o.now(),
	}
	if err := o.deps.Templates.SaveTemplate(ctx, ref); err != nil {
		return nil, err
	}

	o.deps.Logger.Info("template registered",
		logfields.TemplateID(ref.ID),
		logfields.DocumentID(docID),
		logfields.File(fileName),
		"placeholders", len(placeholders))
	return ref, nil
}

func (o *Orchestrator) extensionAllowed(ext string) bool {
	for _, allowed := range o.deps.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}
