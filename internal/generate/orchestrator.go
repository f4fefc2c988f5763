// Package generate drives the document pipeline: template registration,
// placeholder replacement, composition, conversion and artifact handoff.
package generate

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docgen/internal/convert"
	"git.home.luguber.info/inful/docgen/internal/emailhtml"
	derrors "git.home.luguber.info/inful/docgen/internal/errors"
	"git.home.luguber.info/inful/docgen/internal/events"
	"git.home.luguber.info/inful/docgen/internal/lifecycle"
	"git.home.luguber.info/inful/docgen/internal/logfields"
	"git.home.luguber.info/inful/docgen/internal/metrics"
	"git.home.luguber.info/inful/docgen/internal/ooxml"
	"git.home.luguber.info/inful/docgen/internal/storage"
)

// Job describes a single-template generation request.
type Job struct {
	TemplateID  string
	Values      map[string]string
	Format      convert.Format
	RequestedBy string
}

// Embed names one sub-document to splice into a placeholder of the main
// template during composite generation.
type Embed struct {
	Placeholder string
	TemplateID  string
	Values      map[string]string
}

// CompositeJob is a Job plus its embedded sub-documents.
type CompositeJob struct {
	Job
	Embeds []Embed
}

// Result reports what was produced and where to pick it up.
type Result struct {
	GenerationID          string    `json:"generation_id"`
	FileName              string    `json:"file_name"`
	Format                string    `json:"format"`
	SizeBytes             int64     `json:"size_bytes"`
	ExpiresAt             time.Time `json:"expires_at"`
	ProcessedPlaceholders int       `json:"processed_placeholders"`
	EmbedResults          []string  `json:"embed_results,omitempty"`
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Documents storage.DocumentStore
	Templates storage.TemplateStore
	Converter convert.Converter
	Artifacts *lifecycle.Manager
	Email     *emailhtml.Processor
	Publisher *events.Publisher
	Recorder  metrics.Recorder
	Logger    *slog.Logger

	WorkDir           string
	MaxInputSize      int64
	AllowedExtensions []string
}

// Orchestrator runs generation jobs end to end. It is safe for concurrent
// use; all mutable state lives in the stores and the artifact manager.
type Orchestrator struct {
	deps Deps
	now  func() time.Time
}

func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if err := os.MkdirAll(deps.WorkDir, 0o755); err != nil {
		return nil, err
	}
	return &Orchestrator{deps: deps, now: time.Now}, nil
}

// Generate produces one document from one template.
func (o *Orchestrator) Generate(ctx context.Context, job Job) (*Result, error) {
	start := o.now()
	res, err := o.run(ctx, job, nil)
	o.finish(job.Format, start, err)
	return res, err
}

// GenerateComposite produces one document from a main template with
// sub-documents embedded at its placeholders. Per-embed failures are
// reported in the result, not as job errors.
func (o *Orchestrator) GenerateComposite(ctx context.Context, job CompositeJob) (*Result, error) {
	start := o.now()
	res, err := o.run(ctx, job.Job, job.Embeds)
	o.finish(job.Format, start, err)
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, job Job, embeds []Embed) (*Result, error) {
	tpl, err := o.Template(ctx, job.TemplateID)
	if err != nil {
		return nil, err
	}
	pkg, err := o.loadPackage(ctx, tpl)
	if err != nil {
		return nil, err
	}

	values := o.mainValues(job.Values, embeds)
	for key := range values {
		if !tpl.HasPlaceholder(key) {
			o.deps.Logger.Warn("value does not match a declared placeholder",
				logfields.TemplateID(tpl.ID), logfields.Placeholder(key))
		}
	}

	stats, err := ooxml.ReplaceProperties(pkg, values)
	if err != nil {
		return nil, err
	}

	embedResults, err := o.applyEmbeds(ctx, pkg, embeds)
	if err != nil {
		return nil, err
	}

	shortID := uuid.NewString()[:8]
	fileName := buildFileName(tpl.Name, o.now(), shortID, pkg.Kind().Extension())
	workPath := filepath.Join(o.deps.WorkDir, fileName)
	if err := pkg.Save(workPath); err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(workPath); rmErr != nil && !os.IsNotExist(rmErr) {
			o.deps.Logger.Warn("working copy not removed", logfields.Path(workPath), logfields.Error(rmErr))
		}
	}()

	// The converter writes into a disposable directory; the artifacts
	// directory only ever holds registered files. Companion files the
	// engine drops next to its output vanish with the directory.
	convDir, err := os.MkdirTemp(o.deps.WorkDir, "convert-")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(convDir); rmErr != nil {
			o.deps.Logger.Warn("conversion directory not removed", logfields.Path(convDir), logfields.Error(rmErr))
		}
	}()

	outPath, err := o.convert(ctx, workPath, job.Format, convDir)
	if err != nil {
		return nil, err
	}

	if job.Format == convert.FormatEmailHTML {
		if err := o.postProcessEmail(outPath); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(o.deps.Artifacts.Dir(), filepath.Base(outPath))
	if err := moveFile(outPath, finalPath); err != nil {
		return nil, err
	}

	artifact := o.deps.Artifacts.Register(finalPath, filepath.Base(finalPath), string(job.Format), tpl.ID, job.RequestedBy, info.Size())

	if err := o.deps.Templates.IncrementUsage(ctx, tpl.ID); err != nil {
		o.deps.Logger.Warn("usage counter not updated", logfields.TemplateID(tpl.ID), logfields.Error(err))
	}
	o.deps.Publisher.ArtifactGenerated(events.ArtifactEvent{
		ArtifactID: artifact.ID,
		TemplateID: tpl.ID,
		FileName:   artifact.FileName,
		Format:     artifact.Format,
		SizeBytes:  artifact.SizeBytes,
		CreatedBy:  job.RequestedBy,
		OccurredAt: artifact.CreatedAt,
	})

	o.deps.Logger.Info("document generated",
		logfields.ArtifactID(artifact.ID),
		logfields.TemplateID(tpl.ID),
		logfields.Format(string(job.Format)),
		logfields.File(artifact.FileName))

	return &Result{
		GenerationID:          artifact.ID,
		FileName:              artifact.FileName,
		Format:                artifact.Format,
		SizeBytes:             artifact.SizeBytes,
		ExpiresAt:             artifact.ExpiresAt,
		ProcessedPlaceholders: stats.PropertiesUpdated,
		EmbedResults:          embedResults,
	}, nil
}

// mainValues drops values whose key is claimed by an embed placeholder, so
// the main replacement pass cannot overwrite a splice point before the
// composer gets to it.
func (o *Orchestrator) mainValues(values map[string]string, embeds []Embed) map[string]string {
	if len(embeds) == 0 {
		return values
	}
	claimed := make(map[string]struct{}, len(embeds))
	for _, e := range embeds {
		claimed[e.Placeholder] = struct{}{}
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if _, ok := claimed[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func (o *Orchestrator) applyEmbeds(ctx context.Context, main *ooxml.Package, embeds []Embed) ([]string, error) {
	if len(embeds) == 0 {
		return nil, nil
	}
	composer := ooxml.NewComposer(o.deps.Logger)
	results := make([]string, 0, len(embeds))
	for _, e := range embeds {
		res, err := o.applyEmbed(ctx, composer, main, e)
		if err != nil {
			return nil, err
		}
		results = append(results, res.String())
	}
	return results, nil
}

func (o *Orchestrator) applyEmbed(ctx context.Context, composer *ooxml.Composer, main *ooxml.Package, e Embed) (ooxml.EmbedResult, error) {
	tpl, err := o.Template(ctx, e.TemplateID)
	if err != nil {
		return embedFailure(e, err), nil
	}
	pkg, err := o.loadPackage(ctx, tpl)
	if err != nil {
		return embedFailure(e, err), nil
	}
	if _, err := ooxml.ReplaceProperties(pkg, e.Values); err != nil {
		return embedFailure(e, err), nil
	}
	return composer.Embed(main, pkg, e.Placeholder)
}

// embedFailure turns an embed preparation error into its per-embedding
// result line; one broken embed never aborts the others.
func embedFailure(e Embed, err error) ooxml.EmbedResult {
	detail := err.Error()
	if derrors.IsKind(err, derrors.KindTemplateNotFound) {
		detail = "template not found: " + e.TemplateID
	}
	return ooxml.EmbedResult{Placeholder: e.Placeholder, Status: ooxml.EmbedFailed, Detail: detail}
}

// Template resolves a template reference, mapping a store miss onto the
// service error taxonomy.
func (o *Orchestrator) Template(ctx context.Context, templateID string) (*storage.TemplateRef, error) {
	tpl, err := o.deps.Templates.GetTemplate(ctx, templateID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, derrors.TemplateNotFound(templateID)
		}
		return nil, err
	}
	return tpl, nil
}

// Templates lists all registered templates.
func (o *Orchestrator) Templates(ctx context.Context) ([]*storage.TemplateRef, error) {
	return o.deps.Templates.ListTemplates(ctx)
}

func (o *Orchestrator) loadPackage(ctx context.Context, tpl *storage.TemplateRef) (*ooxml.Package, error) {
	data, err := o.deps.Documents.FetchBytes(ctx, tpl.SourceDocumentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, derrors.TemplateNotFound(tpl.ID).WithContext("document_id", tpl.SourceDocumentID)
		}
		return nil, err
	}
	if err := o.checkInputSize(int64(len(data))); err != nil {
		return nil, err.WithContext("template_id", tpl.ID)
	}
	return ooxml.Read(bytes.NewReader(data), int64(len(data)))
}

func (o *Orchestrator) checkInputSize(size int64) *derrors.DocgenError {
	if o.deps.MaxInputSize > 0 && size > o.deps.MaxInputSize {
		return derrors.ValidationError("input document exceeds the size limit").
			WithContext("size_bytes", size).
			WithContext("max_bytes", o.deps.MaxInputSize)
	}
	return nil
}

func (o *Orchestrator) convert(ctx context.Context, workPath string, format convert.Format, outDir string) (string, error) {
	start := o.now()
	outPath, err := o.deps.Converter.Convert(ctx, workPath, format, outDir)
	o.deps.Recorder.ObserveConversionDuration(string(format), o.now().Sub(start))
	return outPath, err
}

// moveFile renames src to dst, falling back to copy+remove when the two
// directories live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// postProcessEmail rewrites converter HTML in place for email clients.
// Companion assets the converter dropped next to the output are resolved
// relative to its directory.
func (o *Orchestrator) postProcessEmail(outPath string) error {
	raw, err := os.ReadFile(outPath)
	if err != nil {
		return err
	}
	processed, err := o.deps.Email.Process(raw, filepath.Dir(outPath))
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, processed, 0o644)
}

func (o *Orchestrator) finish(format convert.Format, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
	}
	o.deps.Recorder.IncGeneration(string(format), result)
	o.deps.Recorder.ObserveGenerationDuration(string(format), o.now().Sub(start))
}
