package pg

import (
	"context"
	"database/sql"
	"strings"

	"roadwatch.mg/internal/roads"
)

const userColumns = `id, username, email, password_hash, role, lot_id, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (roads.User, error) {
	var u roads.User
	var lot sql.NullInt64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &lot, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return roads.User{}, err
	}
	u.LotID = idPtr(lot)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, in roads.NewUser) (roads.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		insert into users (username, email, password_hash, role, lot_id)
		values ($1, $2, $3, $4, $5)
		returning `+userColumns,
		in.Username, in.Email, in.PasswordHash, in.Role, nullID(in.LotID)))
	if err != nil {
		return roads.User{}, mapErr(err, "user")
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (roads.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	return u, mapErr(err, "user")
}

// FindUserByLogin matches the username exactly or the email case-insensitively.
func (s *Store) FindUserByLogin(ctx context.Context, login string) (roads.User, error) {
	login = strings.TrimSpace(login)
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users
		where username = $1 or lower(email) = lower($1)
		order by (username = $1) desc
		limit 1`, login))
	return u, mapErr(err, "user")
}

func (s *Store) ListUsers(ctx context.Context, f roads.UserFilter) ([]roads.User, error) {
	role := strings.ToLower(strings.TrimSpace(f.Role))
	if role == "all" || role == "tous" {
		role = ""
	}
	search := strings.TrimSpace(f.Search)
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+` from users
		where ($1 = '' or role = $1)
		  and ($2 = '' or username ilike '%' || $2 || '%' or email ilike '%' || $2 || '%')
		order by username`, role, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []roads.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id int64, p roads.UserPatch) (roads.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roads.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	u, err := scanUser(tx.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1 for update`, id))
	if err != nil {
		return roads.User{}, mapErr(err, "user")
	}
	if err := p.Apply(&u); err != nil {
		return roads.User{}, err
	}
	u, err = scanUser(tx.QueryRowContext(ctx, `
		update users set username = $2, email = $3, role = $4, lot_id = $5, is_active = $6, updated_at = now()
		where id = $1
		returning `+userColumns,
		id, u.Username, u.Email, u.Role, nullID(u.LotID), u.IsActive))
	if err != nil {
		return roads.User{}, mapErr(err, "user")
	}
	if err := tx.Commit(); err != nil {
		return roads.User{}, err
	}
	return u, nil
}

// DeleteUser removes an account. Accounts that authored documents, versions,
// meetings or minutes are kept and reported as a conflict.
func (s *Store) DeleteUser(ctx context.Context, id int64) (roads.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `delete from users where id = $1 returning `+userColumns, id))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return roads.User{}, roads.Conflict("user still owns records")
		}
		return roads.User{}, mapErr(err, "user")
	}
	return u, nil
}

func (s *Store) SetPassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `update users set password_hash = $2, updated_at = now() where id = $1`, id, hash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roads.NotFound("user")
	}
	return nil
}
