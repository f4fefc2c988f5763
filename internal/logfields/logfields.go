package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTemplateID  = "template_id"
	KeyArtifactID  = "artifact_id"
	KeyDocumentID  = "document_id"
	KeyPlaceholder = "placeholder"
	KeyFormat      = "format"
	KeyPath        = "path"
	KeyFile        = "file"
	KeyDurationMS  = "duration_ms"
	KeyMethod      = "method"
	KeyStatus      = "status"
	KeyUserAgent   = "user_agent"
	KeyRemoteAddr  = "remote_addr"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func TemplateID(id string) slog.Attr   { return slog.String(KeyTemplateID, id) }
func ArtifactID(id string) slog.Attr   { return slog.String(KeyArtifactID, id) }
func DocumentID(id string) slog.Attr   { return slog.String(KeyDocumentID, id) }
func Placeholder(p string) slog.Attr   { return slog.String(KeyPlaceholder, p) }
func Format(f string) slog.Attr        { return slog.String(KeyFormat, f) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
