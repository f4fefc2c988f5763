package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	derrors "git.home.luguber.info/inful/docgen/internal/errors"
	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// Converter transforms a source package file into the requested format,
// writing the result into outDir and returning the output path.
type Converter interface {
	Convert(ctx context.Context, inputPath string, format Format, outDir string) (string, error)
}

// Soffice drives a headless LibreOffice process. Conversions run to
// completion or timeout; there is no cancellation of an in-flight run beyond
// the hard deadline.
type Soffice struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSoffice creates a converter using the given binary and hard timeout.
func NewSoffice(bin string, timeout time.Duration, logger *slog.Logger) *Soffice {
	if logger == nil {
		logger = slog.Default()
	}
	return &Soffice{bin: bin, timeout: timeout, logger: logger}
}

// Convert performs the conversion. Original and same-extension Native
// requests are plain byte copies; everything else shells out.
func (s *Soffice) Convert(ctx context.Context, inputPath string, format Format, outDir string) (string, error) {
	sourceExt := strings.ToLower(filepath.Ext(inputPath))
	targetExt := format.Extension(sourceExt)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	targetPath := filepath.Join(outDir, base+targetExt)

	if format == FormatOriginal || (format == FormatNative && targetExt == sourceExt) {
		if err := copyFile(inputPath, targetPath); err != nil {
			return "", derrors.ConversionFailed(err, "copy package to output")
		}
		return targetPath, nil
	}

	if err := s.run(ctx, inputPath, format.converterFilter(sourceExt), outDir); err != nil {
		return "", err
	}

	// The engine picks its own output name derived from the input's base
	// name; locate the actual artifact and normalize it to the target path.
	produced, err := locateOutput(outDir, base, targetExt)
	if err != nil {
		return "", derrors.ConversionFailed(err, "converter produced no output")
	}
	if produced != targetPath {
		if err := os.Rename(produced, targetPath); err != nil {
			return "", derrors.ConversionFailed(err, "normalize converter output name")
		}
	}
	return targetPath, nil
}

// run invokes the external engine with a hard deadline. On timeout the
// subprocess is force-terminated and any partial expected output removed,
// since its state is unknown.
func (s *Soffice) run(ctx context.Context, inputPath, filter, outDir string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.bin, "--headless", "--norestore",
		"--convert-to", filter, "--outdir", outDir, inputPath)
	cmd.Stderr = &stderr

	started := time.Now()
	s.logger.Info("Running conversion engine",
		logfields.Path(inputPath), slog.String("filter", filter))
	err := cmd.Run()
	duration := time.Since(started)

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.cleanPartialOutput(outDir, inputPath, filter)
		s.logger.Error("Conversion engine timed out",
			logfields.Path(inputPath), logfields.DurationMS(float64(duration.Milliseconds())))
		return derrors.ConversionTimeout(ctx.Err(), inputPath)
	}
	if err != nil {
		return derrors.ConversionFailed(err, "conversion engine failed").
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	}
	s.logger.Info("Conversion finished",
		logfields.Path(inputPath), logfields.DurationMS(float64(duration.Milliseconds())))
	return nil
}

// cleanPartialOutput best-effort removes whatever the killed engine may have
// written under the expected name.
func (s *Soffice) cleanPartialOutput(outDir, inputPath, filter string) {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	if produced, err := locateOutput(outDir, base, "."+filter); err == nil {
		if rmErr := os.Remove(produced); rmErr != nil {
			s.logger.Warn("Could not remove partial converter output",
				logfields.Path(produced), logfields.Error(rmErr))
		}
	}
}

// locateOutput finds the artifact the engine actually produced: the exact
// expected name first, then the newest file sharing the base name prefix and
// extension. This heuristic is inherently environment-dependent and kept in
// one place.
func locateOutput(outDir, base, ext string) (string, error) {
	expected := filepath.Join(outDir, base+ext)
	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	}

	matches, err := filepath.Glob(filepath.Join(outDir, base+"*"+ext))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no output matching %s*%s in %s", base, ext, outDir)
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, errI := os.Stat(matches[i])
		fj, errJ := os.Stat(matches[j])
		if errI != nil || errJ != nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return matches[0], nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(filepath.Clean(dst))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
