package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"projecthub/internal/domain/services"
	"projecthub/internal/httputil"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files
const multipartMemory = 8 << 20

// DocumentHandler handles document HTTP requests
type DocumentHandler struct {
	docService     services.DocumentService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docService services.DocumentService, maxUploadBytes int64, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService:     docService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ListDocuments lists a project's documents
// GET /projects/{id}/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	docs, err := h.docService.ListDocuments(r.Context(), user, projectID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// UploadDocument stores the multipart "file" field as a new document
// POST /projects/{id}/documents
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	file, cleanup, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	doc, err := h.docService.UploadDocument(r.Context(), user, projectID, file)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// GetDocument returns a presigned download link
// GET /projects/{id}/documents/{docID}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := pathID(w, r, "docID")
	if !ok {
		return
	}

	link, err := h.docService.GetDownloadLink(r.Context(), user, projectID, docID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, link)
}

// ReplaceDocument replaces the document's file
// PUT /projects/{id}/documents/{docID}
func (h *DocumentHandler) ReplaceDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := pathID(w, r, "docID")
	if !ok {
		return
	}

	file, cleanup, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	doc, err := h.docService.ReplaceDocument(r.Context(), user, projectID, docID, file)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// DeleteDocument deletes a document and its blob
// DELETE /projects/{id}/documents/{docID}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	docID, ok := pathID(w, r, "docID")
	if !ok {
		return
	}

	if err := h.docService.DeleteDocument(r.Context(), user, projectID, docID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondNoContent(w)
}

// readUpload parses the multipart body and opens the "file" part. The
// returned cleanup closes the file and removes any temporary files.
func (h *DocumentHandler) readUpload(w http.ResponseWriter, r *http.Request) (*services.UploadedFile, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return nil, nil, false
		}
		httputil.RespondError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		httputil.RespondError(w, http.StatusBadRequest, "missing \"file\" field")
		return nil, nil, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	cleanup := func() {
		file.Close()
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", "error", err)
		}
	}

	return &services.UploadedFile{
		Filename:    header.Filename,
		Content:     file,
		Size:        header.Size,
		ContentType: contentType,
	}, cleanup, true
}
