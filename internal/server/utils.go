package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// writeJSON serializes the provided value to JSON and writes it with the given
// status code. Encoding goes through an intermediate buffer so a failed encode
// never sends a partial response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("failed writing JSON response body", logfields.Error(err))
		return err
	}
	return nil
}

// writeJSONPretty pretty prints when pretty=1 or pretty=true is passed as a
// query parameter, falling back to compact form if indentation fails.
func (s *Server) writeJSONPretty(w http.ResponseWriter, r *http.Request, status int, v any) error {
	if r != nil {
		if p := r.URL.Query().Get("pretty"); p == "1" || p == "true" {
			b, err := json.MarshalIndent(v, "", "  ")
			if err == nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(status)
				if _, werr := w.Write(append(b, '\n')); werr != nil {
					s.logger.Error("failed writing pretty JSON", logfields.Error(werr))
					return werr
				}
				return nil
			}
			s.logger.Warn("pretty JSON marshal failed, falling back to standard encode", logfields.Error(err))
		}
	}
	return s.writeJSON(w, status, v)
}
