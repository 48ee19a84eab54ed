package pg

import (
	"context"
	"database/sql"
	"fmt"

	"roadwatch.mg/internal/query"
	"roadwatch.mg/internal/roads"
)

const documentColumns = `
	d.id, d.title, d.description, d.type_id, coalesce(dt.name, ''), d.lot_id, d.section_id,
	d.keywords, d.file_ref, d.file_name, d.content_type, d.size_bytes,
	d.creator_id, coalesce(u.username, ''),
	coalesce((select max(v.version_number) from document_versions v where v.document_id = d.id), 0),
	d.created_at, d.updated_at`

const documentFrom = `
	from documents d
	left join document_types dt on dt.id = d.type_id
	left join users u on u.id = d.creator_id`

func scanDocument(row interface{ Scan(...any) error }) (roads.Document, error) {
	var (
		d                    roads.Document
		typeID, lotID, secID sql.NullInt64
	)
	if err := row.Scan(&d.ID, &d.Title, &d.Description, &typeID, &d.TypeName, &lotID, &secID,
		&d.Keywords, &d.Ref, &d.Name, &d.ContentType, &d.Size,
		&d.CreatorID, &d.CreatorName, &d.LatestVersion, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return roads.Document{}, err
	}
	d.TypeID, d.LotID, d.SectionID = idPtr(typeID), idPtr(lotID), idPtr(secID)
	return d, nil
}

func (s *Store) ListDocuments(ctx context.Context, f roads.DocumentFilter) (roads.DocumentPage, error) {
	page := query.NewPage(f.Page.Page, f.Page.Limit)
	where, args := f.Builder().Where(0)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from documents d `+where, args...).Scan(&total); err != nil {
		return roads.DocumentPage{}, err
	}
	n := len(args)
	rows, err := s.db.QueryContext(ctx, `select `+documentColumns+documentFrom+` `+where+`
		order by d.created_at desc, d.id desc
		limit $`+fmt.Sprint(n+1)+` offset $`+fmt.Sprint(n+2),
		append(args, page.Limit, page.Offset())...)
	if err != nil {
		return roads.DocumentPage{}, err
	}
	defer rows.Close()
	out := []roads.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return roads.DocumentPage{}, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return roads.DocumentPage{}, err
	}
	return roads.DocumentPage{Documents: out, Pagination: page.Result(total)}, nil
}

func (s *Store) getDocument(ctx context.Context, q queryer, id int64) (roads.Document, error) {
	d, err := scanDocument(q.QueryRowContext(ctx, `select `+documentColumns+documentFrom+` where d.id = $1`, id))
	if err != nil {
		return roads.Document{}, mapErr(err, "document")
	}
	return d, nil
}

const versionColumns = `
	v.id, v.document_id, v.version_number, v.changes_description,
	v.file_ref, v.file_name, v.content_type, v.size_bytes,
	v.created_by, coalesce(u.username, ''), v.created_at`

func scanVersion(row interface{ Scan(...any) error }) (roads.Version, error) {
	var v roads.Version
	err := row.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.ChangesDescription,
		&v.Ref, &v.Name, &v.ContentType, &v.Size, &v.CreatedBy, &v.CreatorName, &v.CreatedAt)
	return v, err
}

func (s *Store) GetDocument(ctx context.Context, id int64) (roads.DocumentDetail, error) {
	d, err := s.getDocument(ctx, s.db, id)
	if err != nil {
		return roads.DocumentDetail{}, err
	}
	versions, err := s.listVersions(ctx, s.db, id)
	if err != nil {
		return roads.DocumentDetail{}, err
	}
	return roads.DocumentDetail{Document: d, Versions: versions}, nil
}

func (s *Store) listVersions(ctx context.Context, q queryer, docID int64) ([]roads.Version, error) {
	rows, err := q.QueryContext(ctx, `select `+versionColumns+`
		from document_versions v
		left join users u on u.id = v.created_by
		where v.document_id = $1
		order by v.version_number desc`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []roads.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) CreateDocument(ctx context.Context, in roads.DocumentInput) (roads.Document, error) {
	if err := in.Normalize(); err != nil {
		return roads.Document{}, err
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		insert into documents
			(title, description, type_id, lot_id, section_id, keywords,
			 file_ref, file_name, content_type, size_bytes, creator_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		returning id`,
		in.Title, in.Description, nullID(in.TypeID), nullID(in.LotID), nullID(in.SectionID), in.Keywords,
		in.File.Ref, in.File.Name, in.File.ContentType, in.File.Size, in.CreatorID).Scan(&id)
	if err != nil {
		return roads.Document{}, mapErr(err, "document")
	}
	return s.getDocument(ctx, s.db, id)
}

// DeleteDocument removes the document; versions go with it through the
// foreign key cascade. The returned refs let the caller release blobs.
func (s *Store) DeleteDocument(ctx context.Context, id int64) (roads.RemovedDocument, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roads.RemovedDocument{}, err
	}
	defer func() { _ = tx.Rollback() }()

	d, err := s.getDocument(ctx, tx, id)
	if err != nil {
		return roads.RemovedDocument{}, err
	}
	out := roads.RemovedDocument{Document: d, FileRefs: []string{d.Ref}}
	rows, err := tx.QueryContext(ctx, `select file_ref from document_versions where document_id = $1`, id)
	if err != nil {
		return roads.RemovedDocument{}, err
	}
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			rows.Close()
			return roads.RemovedDocument{}, err
		}
		out.FileRefs = append(out.FileRefs, ref)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return roads.RemovedDocument{}, err
	}
	if _, err := tx.ExecContext(ctx, `delete from documents where id = $1`, id); err != nil {
		return roads.RemovedDocument{}, err
	}
	if err := tx.Commit(); err != nil {
		return roads.RemovedDocument{}, err
	}
	return out, nil
}

// CreateVersion locks the parent document so concurrent uploads serialise,
// then numbers the new row max+1.
func (s *Store) CreateVersion(ctx context.Context, docID int64, in roads.VersionInput) (roads.Version, error) {
	if err := in.Normalize(); err != nil {
		return roads.Version{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roads.Version{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked int64
	if err := tx.QueryRowContext(ctx, `select id from documents where id = $1 for update`, docID).Scan(&locked); err != nil {
		return roads.Version{}, mapErr(err, "document")
	}
	v := roads.Version{
		DocumentID:         docID,
		ChangesDescription: in.ChangesDescription,
		File:               in.File,
		CreatedBy:          in.CreatedBy,
	}
	if err := tx.QueryRowContext(ctx, `
		insert into document_versions
			(document_id, version_number, changes_description,
			 file_ref, file_name, content_type, size_bytes, created_by)
		select $1, coalesce(max(version_number), 0) + 1, $2, $3, $4, $5, $6, $7
		from document_versions where document_id = $1
		returning id, version_number, created_at`,
		docID, in.ChangesDescription, in.File.Ref, in.File.Name, in.File.ContentType, in.File.Size, in.CreatedBy).
		Scan(&v.ID, &v.VersionNumber, &v.CreatedAt); err != nil {
		return roads.Version{}, mapErr(err, "user")
	}
	if _, err := tx.ExecContext(ctx, `update documents set updated_at = now() where id = $1`, docID); err != nil {
		return roads.Version{}, err
	}
	if err := tx.Commit(); err != nil {
		return roads.Version{}, err
	}
	return v, nil
}

func (s *Store) GetVersion(ctx context.Context, docID, versionID int64) (roads.Version, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx, `select `+versionColumns+`
		from document_versions v
		left join users u on u.id = v.created_by
		where v.document_id = $1 and v.id = $2`, docID, versionID))
	if err != nil {
		return roads.Version{}, mapErr(err, "version")
	}
	return v, nil
}
