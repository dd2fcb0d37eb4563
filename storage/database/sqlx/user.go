package sqlxdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    time.Time      `db:"last_login"`
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin,
	}
	usr.SetActive(row.IsActive)
	return usr
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excludedIDs := make(pq.StringArray, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excludedIDs = append(excludedIDs, usr.ID)
	}

	if username != "" {
		var taken bool
		err := repo.db.GetContext(ctx, &taken,
			`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) AND id <> ALL($2))`,
			username, excludedIDs)
		if err != nil {
			return errors.Wrap(err, "checking username uniqueness")
		}
		if taken {
			return user.ErrUsernameExists
		}
	}

	var taken bool
	err := repo.db.GetContext(ctx, &taken,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND id <> ALL($2))`,
		email, excludedIDs)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if taken {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	q := `INSERT INTO users (id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.Active(), pq.StringArray(usr.Roles),
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, usr.LastLogin)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM users ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	res := make([]user.User, len(rows))
	for i, row := range rows {
		res[i] = row.toUser()
	}
	return res, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)`, uname)
	if err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	var updated user.User
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var row userRow
		err := tx.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1 FOR UPDATE`, usr.ID)
		if err != nil {
			if isNoRows(err) {
				return user.ErrNotFound
			}
			return errors.Wrap(err, "getting user")
		}
		orig := row.toUser()

		if usr.Name != "" {
			orig.Name = usr.Name
		}
		if usr.Username != "" {
			orig.Username = usr.Username
		}
		if usr.Email != "" {
			orig.Email = usr.Email
		}
		if usr.Roles != nil {
			orig.Roles = usr.Roles
		}
		if usr.PasswordHash != nil {
			orig.PasswordHash = usr.PasswordHash
		}
		if !usr.LastLogin.IsZero() {
			orig.LastLogin = usr.LastLogin
		}
		if !usr.UpdatedAt.IsZero() {
			orig.UpdatedAt = usr.UpdatedAt
		}
		if isActive != nil {
			orig.SetActive(*isActive)
		}

		q := `UPDATE users
			SET name = $2, username = $3, email = $4, is_active = $5, roles = $6,
				password_hash = $7, updated_at = $8, last_login = $9
			WHERE id = $1`
		_, err = tx.ExecContext(ctx, q,
			orig.ID, orig.Name, orig.Username, orig.Email, orig.Active(), pq.StringArray(orig.Roles),
			orig.PasswordHash, orig.UpdatedAt, orig.LastLogin)
		if err != nil {
			return errors.Wrap(err, "updating user")
		}
		updated = orig
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return updated, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, pq.StringArray(ids))
	return errors.Wrap(err, "deleting users")
}
