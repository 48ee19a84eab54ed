package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"roadwatch.mg/internal/obs"
	"roadwatch.mg/internal/query"
	"roadwatch.mg/internal/roads"
)

// multipart parts above this size spill to temporary files
const formMemory = 8 << 20

func (a *API) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		a.listDocuments(w, r, roads.DocumentFilter{
			LotID:     q.Get("lot_id"),
			TypeID:    q.Get("type_id"),
			SectionID: q.Get("section_id"),
			Search:    q.Get("search"),
			Page:      query.ParsePage(q),
		})
	case http.MethodPost:
		a.createDocument(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleDocumentResource routes /api/documents/{id}[/download|/lot|/versions[/{vid}[/download]]].
func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	parts := segments(r.URL.Path, "/api/documents/")
	if len(parts) == 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, ok := pathID(w, r, parts[0], "document")
	if !ok {
		return
	}
	rest := parts[1:]
	switch {
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			a.getDocument(w, r, id)
		case http.MethodDelete:
			a.deleteDocument(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case len(rest) == 1 && rest[0] == "lot":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		q := r.URL.Query()
		a.listDocuments(w, r, roads.DocumentFilter{
			LotID:  parts[0],
			TypeID: q.Get("type_id"),
			Search: q.Get("search"),
			Page:   query.ParsePage(q),
		})
	case len(rest) == 1 && rest[0] == "download":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.downloadDocument(w, r, id)
	case len(rest) == 1 && rest[0] == "versions":
		switch r.Method {
		case http.MethodGet:
			a.listVersions(w, r, id)
		case http.MethodPost, http.MethodPut:
			a.createVersion(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPut)
		}
	case (len(rest) == 2 || len(rest) == 3) && rest[0] == "versions":
		vid, ok := pathID(w, r, rest[1], "version")
		if !ok {
			return
		}
		if len(rest) == 3 && rest[2] != "download" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		v, err := a.store.GetVersion(r.Context(), id, vid)
		if err != nil {
			a.handleStoreError(w, r, err)
			return
		}
		if len(rest) == 2 {
			writeJSON(w, http.StatusOK, v)
			return
		}
		a.serveFile(w, r, v.File, v.CreatedAt)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listDocuments(w http.ResponseWriter, r *http.Request, f roads.DocumentFilter) {
	page, err := a.store.ListDocuments(r.Context(), f)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getDocument(w http.ResponseWriter, r *http.Request, id int64) {
	doc, err := a.store.GetDocument(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) createDocument(w http.ResponseWriter, r *http.Request) {
	if !a.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := roads.DocumentInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Keywords:    r.FormValue("keywords"),
		CreatorID:   caller(r).UserID,
	}
	var err error
	if in.TypeID, err = formID(r, "type_id"); err == nil {
		if in.LotID, err = formID(r, "lot_id"); err == nil {
			in.SectionID, err = formID(r, "section_id")
		}
	}
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	if in.File, err = a.storeUpload(r); err != nil {
		a.handleStoreError(w, r, err)
		return
	}

	doc, err := a.store.CreateDocument(r.Context(), in)
	if err != nil {
		a.releaseBlob(in.File.Ref)
		a.handleStoreError(w, r, err)
		return
	}
	a.record(r, "create_document", map[string]any{"document_id": doc.ID, "title": doc.Title})
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) deleteDocument(w http.ResponseWriter, r *http.Request, id int64) {
	if !requireAdmin(w, r) {
		return
	}
	removed, err := a.store.DeleteDocument(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	for _, ref := range removed.FileRefs {
		a.releaseBlob(ref)
	}
	a.record(r, "delete_document", map[string]any{"document_id": id, "title": removed.Title})
	writeJSON(w, http.StatusOK, map[string]any{"message": "document deleted", "document": removed.Document})
}

func (a *API) listVersions(w http.ResponseWriter, r *http.Request, id int64) {
	doc, err := a.store.GetDocument(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.Versions)
}

func (a *API) createVersion(w http.ResponseWriter, r *http.Request, id int64) {
	if !a.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := roads.VersionInput{
		ChangesDescription: r.FormValue("changes_description"),
		CreatedBy:          caller(r).UserID,
	}
	if strings.TrimSpace(in.ChangesDescription) == "" {
		a.handleStoreError(w, r, roads.Invalid("changes_description is required"))
		return
	}
	var err error
	if in.File, err = a.storeUpload(r); err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	v, err := a.store.CreateVersion(r.Context(), id, in)
	if err != nil {
		a.releaseBlob(in.File.Ref)
		a.handleStoreError(w, r, err)
		return
	}
	obs.VersionCreated()
	a.record(r, "create_version", map[string]any{"document_id": id, "version_number": v.VersionNumber})
	writeJSON(w, http.StatusCreated, v)
}

// downloadDocument serves the baseline, or the newest version with ?version=latest.
func (a *API) downloadDocument(w http.ResponseWriter, r *http.Request, id int64) {
	doc, err := a.store.GetDocument(r.Context(), id)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	if r.URL.Query().Get("version") == "latest" && len(doc.Versions) > 0 {
		v := doc.Versions[0]
		a.serveFile(w, r, v.File, v.CreatedAt)
		return
	}
	a.serveFile(w, r, doc.File, doc.CreatedAt)
}

func (a *API) serveFile(w http.ResponseWriter, r *http.Request, f roads.File, modTime time.Time) {
	fh, err := a.blobs.Open(f.Ref)
	if err != nil {
		a.handleStoreError(w, r, err)
		return
	}
	defer fh.Close()

	name := f.Name
	if name == "" {
		name = f.Ref
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, modTime, fh)
}

// parseUpload reads the multipart form, answering 400 or 413 on failure.
func (a *API) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	err := r.ParseMultipartForm(formMemory)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
		return false
	}
	writeError(w, r, http.StatusBadRequest, "multipart form with a file field is required")
	return false
}

// storeUpload copies the "file" part into the blob store.
func (a *API) storeUpload(r *http.Request) (roads.File, error) {
	f, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return roads.File{}, roads.Invalid("file is required")
	}
	if err != nil {
		return roads.File{}, err
	}
	defer f.Close()
	return a.blobs.Put(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), f)
}

func (a *API) releaseBlob(ref string) {
	if ref == "" {
		return
	}
	if err := a.blobs.Delete(ref); err != nil {
		obs.Warn("blob_delete_failed", map[string]any{"ref": ref, "error": err.Error()})
	}
}

func formID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" || raw == "null" || query.IsPlaceholder(raw) {
		return nil, nil
	}
	id, ok := parseID(raw)
	if !ok {
		return nil, roads.Invalid("%s must be a positive integer", key)
	}
	return &id, nil
}
