package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/foxzi/textcast/internal/importer"
)

// handleImport handles POST /api/v1/imports?commit=true&format=csv|lines.
// The body is the raw upload. Without commit the batch is only planned.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format, err := importFormat(r)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := r.Header.Get("X-Filename")
	if source == "" {
		source = "api"
	}

	res, err := s.deps.Pipeline.Import(ctx, actorFrom(ctx), source, r.Body, format, queryBool(r, "commit"))
	if err != nil {
		var sizeErr *importer.SizeLimitError
		var storeErr *importer.StoreUnavailableError
		switch {
		case errors.As(err, &sizeErr):
			s.sendError(w, http.StatusRequestEntityTooLarge, sizeErr.Error())
		case errors.As(err, &storeErr):
			s.sendError(w, http.StatusServiceUnavailable, "Contact store unavailable, nothing was imported")
		case errors.Is(err, importer.ErrNoPhoneColumn):
			s.sendError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("import failed", "error", err)
			s.sendError(w, http.StatusBadRequest, "Failed to read import")
		}
		return
	}

	s.sendJSON(w, http.StatusOK, res)
}

// handleListImports handles GET /api/v1/imports
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.deps.Imports.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list imports", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list imports")
		return
	}
	s.sendJSON(w, http.StatusOK, records)
}

// importFormat takes the format from the query, falling back to the content type
func importFormat(r *http.Request) (importer.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return importer.ParseFormat(f)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		return importer.FormatLines, nil
	}
	return importer.FormatCSV, nil
}
