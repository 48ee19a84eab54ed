package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatements(t *testing.T) {
	sql := `
-- lots; reference data
create table lots (id bigserial primary key);
insert into lots (name) values ('a;b'), ('it''s');
-- trailing comment only
`
	stmts := splitStatements(sql)
	if len(stmts) != 2 {
		t.Fatalf("statements = %q", stmts)
	}
	if !strings.Contains(stmts[1], "'a;b'") || !strings.Contains(stmts[1], "'it''s'") {
		t.Fatalf("string literal was split: %q", stmts[1])
	}
	for _, s := range stmts {
		if strings.Contains(s, "--") || strings.Contains(s, "reference data") {
			t.Fatalf("comment leaked into %q", s)
		}
	}
}

func expectTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"sql/0002_more.up.sql":   {Data: []byte("alter table lots add column code text;")},
		"sql/0001_init.up.sql":   {Data: []byte("create table lots (id int);")},
		"sql/0001_init.down.sql": {Data: []byte("drop table lots;")},
	}

	expectTables(mock)
	mock.ExpectQuery("select name, applied_at from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name", "applied_at"}).AddRow("0001_init.up.sql", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("alter table lots add column code text").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into schema_migrations").WithArgs("0002_more.up.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := NewManager(db, fsys, "sql", "").Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{"sql/0001_init.up.sql": {Data: []byte("create table lots (id int);")}}
	expectTables(mock)
	mock.ExpectQuery("select name, applied_at from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("create table lots").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = NewManager(db, fsys, "sql", "").Up(context.Background())
	if err == nil || !strings.Contains(err.Error(), "0001_init.up.sql") {
		t.Fatalf("Up err = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"sql/0001_init.up.sql":   {Data: []byte("create table lots (id int);")},
		"sql/0002_more.up.sql":   {Data: []byte("alter table lots add column code text;")},
		"sql/0002_more.down.sql": {Data: []byte("alter table lots drop column code;")},
	}
	now := time.Now()
	expectTables(mock)
	mock.ExpectQuery("select name, applied_at from schema_migrations order by applied_at").
		WillReturnRows(sqlmock.NewRows([]string{"name", "applied_at"}).
			AddRow("0001_init.up.sql", now.Add(-time.Hour)).
			AddRow("0002_more.up.sql", now))
	mock.ExpectBegin()
	mock.ExpectExec("alter table lots drop column code").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from schema_migrations where name").WithArgs("0002_more.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewManager(db, fsys, "sql", "").Down(context.Background()); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRequiresDownFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{"sql/0001_init.up.sql": {Data: []byte("create table lots (id int);")}}
	expectTables(mock)
	mock.ExpectQuery("select name, applied_at from schema_migrations order by applied_at").
		WillReturnRows(sqlmock.NewRows([]string{"name", "applied_at"}).AddRow("0001_init.up.sql", time.Now()))

	err = NewManager(db, fsys, "sql", "").Down(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing down migration") {
		t.Fatalf("Down err = %v", err)
	}
}
