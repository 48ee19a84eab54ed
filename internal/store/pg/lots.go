package pg

import (
	"context"

	"roadwatch.mg/internal/roads"
)

func (s *Store) ListLots(ctx context.Context) ([]roads.Lot, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, region, created_at from lots order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []roads.Lot{}
	for rows.Next() {
		var l roads.Lot
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.Region, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetLot(ctx context.Context, id int64) (roads.Lot, error) {
	var l roads.Lot
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, region, created_at from lots where id = $1`, id).
		Scan(&l.ID, &l.Name, &l.Description, &l.Region, &l.CreatedAt)
	return l, mapErr(err, "lot")
}

func (s *Store) CreateLot(ctx context.Context, in roads.LotInput) (roads.Lot, error) {
	if err := in.Normalize(); err != nil {
		return roads.Lot{}, err
	}
	l := roads.Lot{Name: in.Name, Description: in.Description, Region: in.Region}
	err := s.db.QueryRowContext(ctx, `
		insert into lots (name, description, region) values ($1, $2, $3)
		returning id, created_at`, in.Name, in.Description, in.Region).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return roads.Lot{}, mapErr(err, "lot")
	}
	return l, nil
}

func (s *Store) ListTypes(ctx context.Context) ([]roads.DocumentType, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, created_at from document_types order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []roads.DocumentType{}
	for rows.Next() {
		var t roads.DocumentType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateType(ctx context.Context, in roads.TypeInput) (roads.DocumentType, error) {
	if err := in.Normalize(); err != nil {
		return roads.DocumentType{}, err
	}
	t := roads.DocumentType{Name: in.Name, Description: in.Description}
	err := s.db.QueryRowContext(ctx, `
		insert into document_types (name, description) values ($1, $2)
		returning id, created_at`, in.Name, in.Description).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return roads.DocumentType{}, mapErr(err, "document type")
	}
	return t, nil
}

func (s *Store) UpdateType(ctx context.Context, id int64, in roads.TypeInput) (roads.DocumentType, error) {
	if err := in.Normalize(); err != nil {
		return roads.DocumentType{}, err
	}
	var t roads.DocumentType
	err := s.db.QueryRowContext(ctx, `
		update document_types set name = $2, description = $3 where id = $1
		returning id, name, description, created_at`, id, in.Name, in.Description).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt)
	if err != nil {
		return roads.DocumentType{}, mapErr(err, "document type")
	}
	return t, nil
}

// DeleteType refuses to drop a type still referenced by documents.
func (s *Store) DeleteType(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from document_types where id = $1`, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return roads.Conflict("document type is in use")
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roads.NotFound("document type")
	}
	return nil
}
