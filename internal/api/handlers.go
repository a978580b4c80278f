package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

type scrapeRequest struct {
	URLs []string `json:"urls"`
}

type deleteRequest struct {
	URL string `json:"url"`
}

type downloadRequest struct {
	Images []string `json:"images"`
}

// scrape handles POST /api/scrape. It always answers 200 with a
// per-url map once the input shape is valid; individual failures
// appear as "Error: ..." entries, never as an HTTP error.
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	// A nil slice means the key was absent or null; an explicit empty
	// array is a valid (empty) request.
	if req.URLs == nil {
		s.writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	result := s.scrapes.ScrapeAll(r.Context(), req.URLs)
	s.writeJSON(w, http.StatusOK, result)
}

// history handles GET /api/history.
func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Recent(r.Context(), s.historyLimit)
	if err != nil {
		s.logger.Error("fetch history failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch history")
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// deleteHistory handles DELETE /api/history.
func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "URL required")
		return
	}
	deleted, err := s.store.Delete(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("delete history failed", zap.String("url", req.URL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Delete failed")
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "Not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

// download handles POST /api/download, streaming a zip of the
// requested images re-encoded as PNG. Entries that fail to download or
// re-encode are skipped.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Images) == 0 {
		s.writeError(w, http.StatusBadRequest, "No images provided")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="images.zip"`)
	if err := s.archiver.BuildZip(r.Context(), w, req.Images); err != nil {
		// Headers are already out; all we can do is log.
		s.logger.Error("build zip failed", zap.Error(err))
	}
}

// proxy handles GET /api/proxy?url=..., passing the origin's bytes and
// content type through to bypass hotlink protection. This endpoint
// reports errors as plaintext rather than JSON.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request) {
	imageURL := r.URL.Query().Get("url")
	if imageURL == "" {
		http.Error(w, "Missing image URL", http.StatusBadRequest)
		return
	}

	resp, err := s.client.Open(r.Context(), imageURL)
	if err != nil {
		s.logger.Error("proxy fetch failed", zap.String("url", imageURL), zap.Error(err))
		http.Error(w, "Failed to proxy image", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.WriteHeader(resp.StatusCode)
		fmt.Fprintf(w, "Failed to fetch image: %d", resp.StatusCode)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Warn("proxy stream interrupted", zap.String("url", imageURL), zap.Error(err))
	}
}
