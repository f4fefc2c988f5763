package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docgen/internal/config"
	"git.home.luguber.info/inful/docgen/internal/convert"
	"git.home.luguber.info/inful/docgen/internal/emailhtml"
	"git.home.luguber.info/inful/docgen/internal/events"
	"git.home.luguber.info/inful/docgen/internal/generate"
	"git.home.luguber.info/inful/docgen/internal/lifecycle"
	"git.home.luguber.info/inful/docgen/internal/metrics"
	"git.home.luguber.info/inful/docgen/internal/ooxml"
	"git.home.luguber.info/inful/docgen/internal/server"
	"git.home.luguber.info/inful/docgen/internal/storage"
	"git.home.luguber.info/inful/docgen/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"docgen.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" help:"Run the document generation API server"`

	Register struct {
		File string `arg:"" help:"Template document to register (.docx/.xlsx/.pptx)"`
	} `cmd:"" help:"Register a template document and print its placeholders"`

	Placeholders struct {
		File string `arg:"" help:"Document to inspect"`
	} `cmd:"" help:"List the custom property placeholders of a document"`

	Generate struct {
		TemplateID string            `arg:"" help:"Registered template id"`
		Set        map[string]string `short:"s" help:"Placeholder values as key=value pairs"`
		Format     string            `short:"f" help:"Export format (original, native, html, emailhtml, pdf)" default:"original"`
		Output     string            `short:"o" help:"Directory to place the generated document in" default:"."`
	} `cmd:"" help:"Generate a document from a registered template"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	var err error
	switch ctx.Command() {
	case "serve":
		err = runServe(logger)
	case "register <file>":
		err = runRegister(logger, CLI.Register.File)
	case "placeholders <file>":
		err = runPlaceholders(CLI.Placeholders.File)
	case "generate <template-id>":
		err = runGenerate(logger, CLI.Generate.TemplateID, CLI.Generate.Set, CLI.Generate.Format, CLI.Generate.Output)
	case "version":
		fmt.Printf("docgen %s (built %s, commit %s)\n", version.Version, version.BuildTime, version.GitCommit)
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// pipeline bundles the components every command beyond inspection needs.
type pipeline struct {
	cfg       *config.Config
	orch      *generate.Orchestrator
	artifacts *lifecycle.Manager
	documents *storage.FSDocumentStore
	templates storage.TemplateStore
}

func buildPipeline(logger *slog.Logger, recorder metrics.Recorder, publisher *events.Publisher) (*pipeline, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}

	documents, err := storage.NewFSDocumentStore(cfg.Storage.DocumentsDir)
	if err != nil {
		return nil, err
	}
	templates, err := storage.NewSQLiteTemplateStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	artifacts, err := lifecycle.NewManager(cfg.Storage.ArtifactsDir, cfg.Generation.Retention, cfg.Generation.SweepInterval, recorder, logger)
	if err != nil {
		templates.Close()
		return nil, err
	}
	artifacts.OnEvict(func(a *lifecycle.Artifact, reason metrics.EvictionReason) {
		publisher.ArtifactEvicted(events.ArtifactEvent{
			ArtifactID: a.ID,
			TemplateID: a.TemplateID,
			FileName:   a.FileName,
			Format:     a.Format,
			SizeBytes:  a.SizeBytes,
			CreatedBy:  a.CreatedBy,
			OccurredAt: time.Now().UTC(),
		})
	})

	orch, err := generate.NewOrchestrator(generate.Deps{
		Documents:         documents,
		Templates:         templates,
		Converter:         convert.NewSoffice(cfg.Generation.ConverterPath, cfg.Generation.ConversionTimeout, logger),
		Artifacts:         artifacts,
		Email:             emailhtml.NewProcessor(logger),
		Publisher:         publisher,
		Recorder:          recorder,
		Logger:            logger,
		WorkDir:           cfg.Storage.WorkDir,
		MaxInputSize:      cfg.Generation.MaxInputSize,
		AllowedExtensions: cfg.Generation.AllowedExtensions,
	})
	if err != nil {
		templates.Close()
		return nil, err
	}
	return &pipeline{cfg: cfg, orch: orch, artifacts: artifacts, documents: documents, templates: templates}, nil
}

func runServe(logger *slog.Logger) error {
	recorder := metrics.NewPrometheusRecorder()

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	publisher, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
	if err != nil {
		// Event delivery is best effort; a broker outage must not block serving.
		logger.Warn("event broker unreachable, continuing without events", "error", err)
		publisher = nil
	}

	p, err := buildPipeline(logger, recorder, publisher)
	if err != nil {
		return err
	}
	defer p.templates.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := p.artifacts.Start(ctx); err != nil {
		return err
	}
	srv := server.New(p.cfg, p.orch, p.artifacts, recorder.Handler(), logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := p.artifacts.Stop(); err != nil {
		logger.Warn("Artifact manager shutdown incomplete", "error", err)
	}
	publisher.Close()
	return nil
}

func runRegister(logger *slog.Logger, file string) error {
	p, err := buildPipeline(logger, metrics.NoopRecorder{}, nil)
	if err != nil {
		return err
	}
	defer p.templates.Close()

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	ref, err := p.orch.RegisterTemplate(context.Background(), filepath.Base(file), data)
	if err != nil {
		return err
	}

	stored, err := p.documents.Name(ref.SourceDocumentID)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s as %s (stored as %s)\n", ref.Name, ref.ID, stored)
	for _, name := range ref.PlaceholderNames {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runPlaceholders(file string) error {
	pkg, err := ooxml.Open(file)
	if err != nil {
		return err
	}
	names, err := ooxml.CustomPropertyNames(pkg)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No placeholders found")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runGenerate(logger *slog.Logger, templateID string, values map[string]string, format, output string) error {
	p, err := buildPipeline(logger, metrics.NoopRecorder{}, nil)
	if err != nil {
		return err
	}
	defer p.templates.Close()

	parsed, err := convert.ParseFormat(format)
	if err != nil {
		return err
	}
	res, err := p.orch.Generate(context.Background(), generate.Job{
		TemplateID:  templateID,
		Values:      values,
		Format:      parsed,
		RequestedBy: "cli",
	})
	if err != nil {
		return err
	}

	artifact, err := p.artifacts.Get(res.GenerationID)
	if err != nil {
		return err
	}
	dest := filepath.Join(output, artifact.FileName)
	if err := copyFile(artifact.Path, dest); err != nil {
		return err
	}
	p.artifacts.Evict(artifact.ID, metrics.EvictionDownloaded)

	fmt.Printf("Generated %s (%d bytes, %d placeholders processed)\n", dest, res.SizeBytes, res.ProcessedPlaceholders)
	return nil
}

func copyFile(src, dst string) error {
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
	return out.Close()
}
