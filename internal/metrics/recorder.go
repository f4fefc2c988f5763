// Package metrics provides observability hooks for the generation pipeline
// and the artifact lifecycle. Components receive a Recorder through
// dependency injection; the NoopRecorder default keeps metrics optional
// without nil checks.
package metrics

import "time"

// ResultLabel enumerates generation result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// EvictionReason labels why an artifact left the registry.
type EvictionReason string

const (
	EvictionExpired    EvictionReason = "expired"
	EvictionDownloaded EvictionReason = "downloaded"
	EvictionExternal   EvictionReason = "external"
	EvictionShutdown   EvictionReason = "shutdown"
)

// Recorder defines the observability hooks. Implementations must be safe for
// concurrent use.
type Recorder interface {
	IncGeneration(format string, result ResultLabel)
	ObserveGenerationDuration(format string, d time.Duration)
	ObserveConversionDuration(format string, d time.Duration)
	SetActiveArtifacts(n int)
	IncEviction(reason EvictionReason)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) IncGeneration(string, ResultLabel)                {}
func (NoopRecorder) ObserveGenerationDuration(string, time.Duration) {}
func (NoopRecorder) ObserveConversionDuration(string, time.Duration) {}
func (NoopRecorder) SetActiveArtifacts(int)                          {}
func (NoopRecorder) IncEviction(EvictionReason)                      {}
