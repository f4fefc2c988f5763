package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docgen/internal/convert"
	derrors "git.home.luguber.info/inful/docgen/internal/errors"
	"git.home.luguber.info/inful/docgen/internal/generate"
	"git.home.luguber.info/inful/docgen/internal/logfields"
	"git.home.luguber.info/inful/docgen/internal/metrics"
)

// generateRequest is the wire form of a single-template generation job.
type generateRequest struct {
	TemplateID  string            `json:"template_id"`
	Values      map[string]string `json:"values"`
	Format      string            `json:"format"`
	RequestedBy string            `json:"requested_by"`
}

type embedRequest struct {
	Placeholder string            `json:"placeholder"`
	TemplateID  string            `json:"template_id"`
	Values      map[string]string `json:"values"`
}

type compositeRequest struct {
	generateRequest
	Embeds []embedRequest `json:"embeds"`
}

// contentTypes covers the formats the converter can hand out; the system
// mime table cannot be relied on for the OOXML types.
var contentTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".pdf":  "application/pdf",
	".html": "text/html; charset=utf-8",
}

func (s *Server) handleRegisterTemplate(w http.ResponseWriter, r *http.Request) {
	// Double the document limit leaves room for multipart framing while
	// still bounding the request body.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Generation.MaxInputSize*2)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.ValidationError("multipart upload requires a 'file' part").WithCause(err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.ValidationError("upload could not be read").WithCause(err))
		return
	}

	ref, err := s.orch.RegisterTemplate(r.Context(), header.Filename, data)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = s.writeJSONPretty(w, r, http.StatusCreated, templateResponse(ref))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	refs, err := s.orch.Templates(r.Context())
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	out := TemplateListResponse{Templates: make([]TemplateResponse, 0, len(refs)), Count: len(refs)}
	for _, ref := range refs {
		out.Templates = append(out.Templates, templateResponse(ref))
	}
	_ = s.writeJSONPretty(w, r, http.StatusOK, out)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	ref, err := s.orch.Template(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = s.writeJSONPretty(w, r, http.StatusOK, templateResponse(ref))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.ValidationError("invalid JSON body").WithCause(err))
		return
	}
	job, err := s.toJob(req)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	res, err := s.orch.Generate(r.Context(), job)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = s.writeJSONPretty(w, r, http.StatusOK, generateResponse(res))
}

func (s *Server) handleGenerateComposite(w http.ResponseWriter, r *http.Request) {
	var req compositeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, derrors.ValidationError("invalid JSON body").WithCause(err))
		return
	}
	job, err := s.toJob(req.generateRequest)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	composite := generate.CompositeJob{Job: job, Embeds: make([]generate.Embed, 0, len(req.Embeds))}
	for _, e := range req.Embeds {
		if e.Placeholder == "" {
			s.errorAdapter.WriteErrorResponse(w, r, derrors.ValidationError("embed entries require a placeholder name"))
			return
		}
		composite.Embeds = append(composite.Embeds, generate.Embed{
			Placeholder: e.Placeholder,
			TemplateID:  e.TemplateID,
			Values:      e.Values,
		})
	}

	res, err := s.orch.GenerateComposite(r.Context(), composite)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = s.writeJSONPretty(w, r, http.StatusOK, generateResponse(res))
}

func (s *Server) toJob(req generateRequest) (generate.Job, error) {
	if req.TemplateID == "" {
		return generate.Job{}, derrors.ValidationError("template_id is required")
	}
	format, err := convert.ParseFormat(req.Format)
	if err != nil {
		return generate.Job{}, err
	}
	return generate.Job{
		TemplateID:  req.TemplateID,
		Values:      req.Values,
		Format:      format,
		RequestedBy: req.RequestedBy,
	}, nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.artifacts.Get(r.PathValue("id"))
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		s.logger.Error("artifact file unreadable", logfields.ArtifactID(artifact.ID), logfields.Error(err))
		s.errorAdapter.WriteErrorResponse(w, r, derrors.ArtifactNotFound(artifact.ID).WithCause(err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.FileName+`"`)
	if ct, ok := contentTypes[filepath.Ext(artifact.FileName)]; ok {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	http.ServeContent(w, r, artifact.FileName, artifact.CreatedAt, f)
}

// handleEvict discards an artifact before its expiry, for callers done with
// the download.
func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.artifacts.Get(id); err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.artifacts.Evict(id, metrics.EvictionDownloaded)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		ActiveArtifacts: s.artifacts.Len(),
		Timestamp:       time.Now().UTC(),
	})
}
