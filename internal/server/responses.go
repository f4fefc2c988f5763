package server

import (
	"time"

	"git.home.luguber.info/inful/docgen/internal/generate"
	"git.home.luguber.info/inful/docgen/internal/storage"
)

// TemplateResponse is the API view of a registered template.
type TemplateResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Placeholders []string  `json:"placeholders"`
	CreatedAt    time.Time `json:"created_at"`
	UsageCount   int64     `json:"usage_count"`
}

// TemplateListResponse wraps a template listing with its count.
type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
	Count     int                `json:"count"`
}

// GenerateResponse is a generation result plus the relative download link.
type GenerateResponse struct {
	generate.Result
	DownloadURL string `json:"download_url"`
}

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status          string    `json:"status"`
	ActiveArtifacts int       `json:"active_artifacts"`
	Timestamp       time.Time `json:"timestamp"`
}

func templateResponse(ref *storage.TemplateRef) TemplateResponse {
	placeholders := ref.PlaceholderNames
	if placeholders == nil {
		placeholders = []string{}
	}
	return TemplateResponse{
		ID:           ref.ID,
		Name:         ref.Name,
		Kind:         ref.Kind,
		Placeholders: placeholders,
		CreatedAt:    ref.CreatedAt,
		UsageCount:   ref.UsageCount,
	}
}

func generateResponse(res *generate.Result) GenerateResponse {
	return GenerateResponse{
		Result:      *res,
		DownloadURL: "/api/downloads/" + res.GenerationID,
	}
}
