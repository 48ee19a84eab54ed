package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"roadwatch.mg/internal/roads"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB
}

var _ roads.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapErr translates constraint violations into domain errors; entity names
// the row a foreign key points at.
func mapErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return roads.NotFound(entity)
	}
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return roads.Conflict(constraintReason(pgErr))
		case pgErrForeignKeyViolation:
			return roads.NotFound(referenced(pgErr))
		}
	}
	return err
}

func constraintReason(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "users_username_key":
		return "username already taken"
	case "users_email_key":
		return "email already registered"
	case "lots_name_key":
		return "lot name already exists"
	case "document_types_name_key":
		return "type name already exists"
	case "document_versions_document_id_version_number_key":
		return "version number already assigned"
	}
	return "duplicate value"
}

func referenced(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "road_sections_lot_id_fkey", "documents_lot_id_fkey", "meetings_lot_id_fkey",
		"messages_lot_id_fkey", "notifications_lot_id_fkey", "users_lot_id_fkey":
		return "lot"
	case "documents_type_id_fkey":
		return "document type"
	case "documents_section_id_fkey":
		return "section"
	case "messages_recipient_id_fkey":
		return "recipient"
	case "messages_sender_id_fkey":
		return "sender"
	}
	return "referenced record"
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func dateOf(t sql.NullTime) roads.Date {
	if !t.Valid {
		return roads.Date{}
	}
	return roads.NewDate(t.Time)
}
