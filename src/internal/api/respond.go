package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"logseqbridge/src/internal/domain"
)

const encodeFailure = "{\n  \"success\": false,\n  \"error\": \"Failed to encode response\"\n}\n"

// writeJSON writes v indented by two spaces. An encoding failure is reported
// as its own 500, separate from downstream errors.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(encodeFailure)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, domain.StatusFor(err), domain.ErrorResponse{Success: false, Error: err.Error()})
}
