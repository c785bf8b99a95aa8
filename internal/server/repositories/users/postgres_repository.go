package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/dbx"
	"github.com/nexuskit/authkeeper/internal/server/models"
)

const userColumns = `id, username, email, full_name, password_hash, is_active, is_superuser, date_joined, last_login`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (username, email, full_name, password_hash, is_active, is_superuser)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, date_joined`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.PasswordHash, user.IsActive, user.IsSuperuser,
	).Scan(&user.ID, &user.DateJoined)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime

	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.PasswordHash, &user.IsActive, &user.IsSuperuser, &user.DateJoined, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return user, nil
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RolesOf(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`

	return r.selectStrings(ctx, query, userID)
}

func (r *PostgresRepository) PermissionsOf(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT DISTINCT p.codename FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = $1
		 ORDER BY p.codename`

	return r.selectStrings(ctx, query, userID)
}

func (r *PostgresRepository) AllPermissions(ctx context.Context) ([]string, error) {
	return r.selectStrings(ctx, `SELECT codename FROM permissions ORDER BY codename`)
}

func (r *PostgresRepository) selectStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// SetRoles replaces the user's memberships in one transaction. Naming an
// unknown role fails the whole replacement with ErrorNotFound.
func (r *PostgresRepository) SetRoles(ctx context.Context, userID string, roleNames []string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		for _, name := range roleNames {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role_id)
				 SELECT $1, id FROM roles WHERE name = $2`, userID, name)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("role %q: %w", name, common.ErrorNotFound)
			}
		}
		return nil
	})
}
