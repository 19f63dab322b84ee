package handlers

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"pagepilot-go/middleware"
)

// saveUpload stores an uploaded file under MEDIA_ROOT/<subdir>/ with a
// random name and returns its media-relative path.
func (h *Handlers) saveUpload(file multipart.File, header *multipart.FileHeader, subdir string) (string, error) {
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	name := uuid.New().String() + ext
	relPath := filepath.Join(subdir, name)

	dir := filepath.Join(h.config.MediaRoot, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(h.config.MediaRoot, relPath))
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}

	return filepath.ToSlash(relPath), nil
}

// ServeMedia serves uploaded files. KYC documents are restricted to staff;
// profile pictures and everything else are public. Any resolved path that
// escapes the media root is rejected.
func (h *Handlers) ServeMedia(w http.ResponseWriter, r *http.Request) {
	filePath := mux.Vars(r)["path"]

	mediaRoot, err := filepath.Abs(h.config.MediaRoot)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Media root unavailable", nil)
		return
	}

	fullPath := filepath.Join(mediaRoot, filepath.FromSlash(filePath))
	fullPath = filepath.Clean(fullPath)
	if fullPath != mediaRoot && !strings.HasPrefix(fullPath, mediaRoot+string(filepath.Separator)) {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if strings.HasPrefix(filePath, "kyc_documents/") {
		claims := middleware.GetUserFromContext(r)
		if claims == nil {
			sendError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		if !claims.IsStaff {
			http.NotFound(w, r)
			return
		}
	}

	contentType := mime.TypeByExtension(filepath.Ext(fullPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, fullPath)
}
