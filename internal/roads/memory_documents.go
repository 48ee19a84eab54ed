package roads

import (
	"context"
	"sort"

	"roadwatch.mg/internal/query"
)

func (s *InMemory) typeName(id *int64) string {
	if id == nil {
		return ""
	}
	if t, ok := s.types[*id]; ok {
		return t.Name
	}
	return ""
}

func (s *InMemory) documentView(d *Document) Document {
	out := *d
	out.TypeID = copyID(d.TypeID)
	out.LotID = copyID(d.LotID)
	out.SectionID = copyID(d.SectionID)
	out.TypeName = s.typeName(d.TypeID)
	out.CreatorName = s.username(d.CreatorID)
	out.LatestVersion = 0
	if vs := s.versions[d.ID]; len(vs) > 0 {
		out.LatestVersion = vs[len(vs)-1].VersionNumber
	}
	return out
}

func (s *InMemory) ListDocuments(ctx context.Context, f DocumentFilter) (DocumentPage, error) {
	page := query.NewPage(f.Page.Page, f.Page.Limit)
	preds := f.Builder().Predicates()
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := []Document{}
	for _, d := range s.documents {
		if query.Match(preds, documentLookup(d)) {
			rows = append(rows, s.documentView(d))
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	start, end := page.Window(len(rows))
	return DocumentPage{Documents: rows[start:end], Pagination: page.Result(len(rows))}, nil
}

func documentLookup(d *Document) func(string) (any, bool) {
	ref := func(id *int64) (any, bool) {
		if id == nil {
			return nil, false
		}
		return *id, true
	}
	return func(field string) (any, bool) {
		switch field {
		case FieldDocumentLot:
			return ref(d.LotID)
		case FieldDocumentType:
			return ref(d.TypeID)
		case FieldDocumentSection:
			return ref(d.SectionID)
		case FieldDocumentTitle:
			return d.Title, true
		}
		return nil, false
	}
}

func (s *InMemory) GetDocument(ctx context.Context, id int64) (DocumentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok {
		return DocumentDetail{}, NotFound("document")
	}
	vs := s.versions[id]
	out := make([]Version, 0, len(vs))
	for i := len(vs) - 1; i >= 0; i-- {
		v := vs[i]
		v.CreatorName = s.username(v.CreatedBy)
		out = append(out, v)
	}
	return DocumentDetail{Document: s.documentView(d), Versions: out}, nil
}

func (s *InMemory) CreateDocument(ctx context.Context, in DocumentInput) (Document, error) {
	if err := in.Normalize(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkDocumentRefs(in); err != nil {
		return Document{}, err
	}
	now := s.stamp()
	d := &Document{
		ID:          s.next("documents"),
		Title:       in.Title,
		Description: in.Description,
		TypeID:      copyID(in.TypeID),
		LotID:       copyID(in.LotID),
		SectionID:   copyID(in.SectionID),
		Keywords:    in.Keywords,
		File:        in.File,
		CreatorID:   in.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.documents[d.ID] = d
	return s.documentView(d), nil
}

func (s *InMemory) checkDocumentRefs(in DocumentInput) error {
	if in.TypeID != nil {
		if _, ok := s.types[*in.TypeID]; !ok {
			return NotFound("document type")
		}
	}
	if in.LotID != nil {
		if _, ok := s.lots[*in.LotID]; !ok {
			return NotFound("lot")
		}
	}
	if in.SectionID != nil {
		if _, ok := s.sections[*in.SectionID]; !ok {
			return NotFound("section")
		}
	}
	if _, ok := s.users[in.CreatorID]; !ok {
		return NotFound("user")
	}
	return nil
}

// DeleteDocument removes the document and its versions together and returns
// every blob reference they held.
func (s *InMemory) DeleteDocument(ctx context.Context, id int64) (RemovedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return RemovedDocument{}, NotFound("document")
	}
	out := RemovedDocument{Document: s.documentView(d), FileRefs: []string{d.Ref}}
	for _, v := range s.versions[id] {
		out.FileRefs = append(out.FileRefs, v.Ref)
	}
	delete(s.versions, id)
	delete(s.documents, id)
	return out, nil
}

// CreateVersion assigns max(version_number)+1 under the store lock, so
// concurrent uploads to one document always get distinct numbers.
func (s *InMemory) CreateVersion(ctx context.Context, docID int64, in VersionInput) (Version, error) {
	if err := in.Normalize(); err != nil {
		return Version{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[docID]
	if !ok {
		return Version{}, NotFound("document")
	}
	if _, ok := s.users[in.CreatedBy]; !ok {
		return Version{}, NotFound("user")
	}
	number := 1
	if vs := s.versions[docID]; len(vs) > 0 {
		number = vs[len(vs)-1].VersionNumber + 1
	}
	now := s.stamp()
	v := Version{
		ID:                 s.next("document_versions"),
		DocumentID:         docID,
		VersionNumber:      number,
		ChangesDescription: in.ChangesDescription,
		File:               in.File,
		CreatedBy:          in.CreatedBy,
		CreatedAt:          now,
	}
	s.versions[docID] = append(s.versions[docID], v)
	d.UpdatedAt = now
	v.CreatorName = s.username(v.CreatedBy)
	return v, nil
}

func (s *InMemory) GetVersion(ctx context.Context, docID, versionID int64) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.documents[docID]; !ok {
		return Version{}, NotFound("document")
	}
	for _, v := range s.versions[docID] {
		if v.ID == versionID {
			v.CreatorName = s.username(v.CreatedBy)
			return v, nil
		}
	}
	return Version{}, NotFound("version")
}
