package roads

import (
	"strconv"
	"strings"
	"time"

	"roadwatch.mg/internal/query"
)

const (
	FieldDocumentLot     = "d.lot_id"
	FieldDocumentType    = "d.type_id"
	FieldDocumentSection = "d.section_id"
	FieldDocumentTitle   = "d.title"
)

// File describes a stored blob attached to a document or a version.
type File struct {
	Ref         string `json:"-"`
	Name        string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// DocumentType is an admin-managed document category.
type DocumentType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TypeInput creates or renames a document type.
type TypeInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in *TypeInput) Normalize() error {
	in.Name = clean(in.Name)
	in.Description = clean(in.Description)
	if in.Name == "" {
		return Invalid("name is required")
	}
	return nil
}

// Document is an uploaded artifact. Its own file is the baseline; versions
// are revisions layered on top of it.
type Document struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TypeID      *int64 `json:"type_id"`
	TypeName    string `json:"type_name,omitempty"`
	LotID       *int64 `json:"lot_id"`
	SectionID   *int64 `json:"section_id"`
	Keywords    string `json:"keywords"`
	File
	CreatorID     int64     `json:"creator_id"`
	CreatorName   string    `json:"creator_name,omitempty"`
	LatestVersion int       `json:"latest_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// State reports the version lifecycle state.
func (d Document) State() string {
	if d.LatestVersion > 0 {
		return "versioned"
	}
	return "draft"
}

// DocumentSummary is the short form embedded in section details.
type DocumentSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"name"`
	TypeName  string    `json:"type"`
	CreatedAt time.Time `json:"upload_date"`
}

// Version is an immutable revision of a document.
type Version struct {
	ID                 int64  `json:"id"`
	DocumentID         int64  `json:"document_id"`
	VersionNumber      int    `json:"version_number"`
	ChangesDescription string `json:"changes_description"`
	File
	CreatedBy   int64     `json:"created_by"`
	CreatorName string    `json:"creator_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentDetail is a document with its versions, most recent first.
type DocumentDetail struct {
	Document
	Versions []Version `json:"versions"`
}

// DocumentInput creates a document from an upload.
type DocumentInput struct {
	Title       string
	Description string
	TypeID      *int64
	LotID       *int64
	SectionID   *int64
	Keywords    string
	File        File
	CreatorID   int64
}

func (in *DocumentInput) Normalize() error {
	in.Title = clean(in.Title)
	in.Description = clean(in.Description)
	in.Keywords = clean(in.Keywords)
	if in.File.Ref == "" {
		return Invalid("file is required")
	}
	if in.Title == "" {
		in.Title = clean(in.File.Name)
	}
	if in.Title == "" {
		return Invalid("title is required")
	}
	return nil
}

// VersionInput appends a version to a document.
type VersionInput struct {
	File               File
	ChangesDescription string
	CreatedBy          int64
}

func (in *VersionInput) Normalize() error {
	in.ChangesDescription = clean(in.ChangesDescription)
	if in.ChangesDescription == "" {
		return Invalid("changes_description is required")
	}
	if in.File.Ref == "" {
		return Invalid("file is required")
	}
	return nil
}

// RemovedDocument is returned by deletion so the caller can release blobs.
type RemovedDocument struct {
	Document
	FileRefs []string `json:"-"`
}

// DocumentFilter is the parsed query of the document listing.
type DocumentFilter struct {
	LotID     string
	TypeID    string
	SectionID string
	Search    string
	Page      query.Page
}

func (f DocumentFilter) Builder() *query.Builder {
	var b query.Builder
	lot, lotOK := parseID(f.LotID)
	typ, typOK := parseID(f.TypeID)
	sec, secOK := parseID(f.SectionID)
	b.EqInt(FieldDocumentLot, lot, lotOK).
		EqInt(FieldDocumentType, typ, typOK).
		EqInt(FieldDocumentSection, sec, secOK).
		Contains(FieldDocumentTitle, f.Search)
	return &b
}

// DocumentPage is one page of the document listing.
type DocumentPage struct {
	Documents  []Document       `json:"documents"`
	Pagination query.Pagination `json:"pagination"`
}

func parseID(raw string) (int64, bool) {
	if query.IsPlaceholder(raw) {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
