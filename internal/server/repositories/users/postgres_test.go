package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func userRows(lastLogin any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "full_name", "password_hash",
		"is_active", "is_superuser", "date_joined", "last_login",
	}).AddRow("u-1", "alice", "alice@example.com", "Alice Cooper", "$2a$10$hash",
		true, false, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), lastLogin)
}

func TestGetByUsername_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q).WithArgs("alice").WillReturnRows(userRows(at))

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.ID != "u-1" || got.Username != "alice" || got.IsSuperuser {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(at) {
		t.Fatalf("unexpected last_login: %v", got.LastLogin)
	}
}

func TestGetByUsername_NullLastLogin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("alice").WillReturnRows(userRows(nil))

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.LastLogin != nil {
		t.Fatalf("expected nil last_login, got %v", got.LastLogin)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("nobody").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "nobody")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("u-1").WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*email,\s*full_name,\s*password_hash,\s*is_active,\s*is_superuser\)`
	joined := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "date_joined"}).AddRow("u-9", joined)
	mock.ExpectQuery(q).
		WithArgs("bob", "bob@example.com", "Bob B", "$2a$10$hash", true, false).
		WillReturnRows(rows)

	u := &models.User{Username: "bob", Email: "bob@example.com", FullName: "Bob B",
		PasswordHash: "$2a$10$hash", IsActive: true}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-9" || !got.DateJoined.Equal(joined) {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestTouchLastLogin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+last_login\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchLastLogin(context.Background(), "u-1", at); err != nil {
		t.Fatalf("TouchLastLogin error: %v", err)
	}
}

func TestRolesOf(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name"}).AddRow("admin").AddRow("editor")
	mock.ExpectQuery(`(?s)^SELECT\s+r\.name\s+FROM\s+roles`).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.RolesOf(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("RolesOf error: %v", err)
	}
	if len(got) != 2 || got[0] != "admin" || got[1] != "editor" {
		t.Fatalf("unexpected roles: %v", got)
	}
}

func TestPermissionsOf(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"codename"}).
		AddRow("users.change_user").AddRow("users.view_user")
	mock.ExpectQuery(`(?s)^SELECT\s+DISTINCT\s+p\.codename\s+FROM\s+permissions`).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.PermissionsOf(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("PermissionsOf error: %v", err)
	}
	if len(got) != 2 || got[0] != "users.change_user" {
		t.Fatalf("unexpected permissions: %v", got)
	}
}

func TestAllPermissions(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"codename"}).
		AddRow("auth.add_user").AddRow("users.view_user")
	mock.ExpectQuery(`(?s)^SELECT\s+codename\s+FROM\s+permissions\s+ORDER\s+BY\s+codename$`).
		WillReturnRows(rows)

	got, err := repo.AllPermissions(context.Background())
	if err != nil {
		t.Fatalf("AllPermissions error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected catalog: %v", got)
	}
}

func TestSetRoles_CommitsReplacement(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE\s+FROM\s+user_roles\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+user_roles`).
		WithArgs("u-1", "editor").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SetRoles(context.Background(), "u-1", []string{"editor"}); err != nil {
		t.Fatalf("SetRoles error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetRoles_UnknownRoleRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE\s+FROM\s+user_roles\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+user_roles`).
		WithArgs("u-1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SetRoles(context.Background(), "u-1", []string{"ghost"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound for unknown role, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetRoles_EmptyListClearsMemberships(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE\s+FROM\s+user_roles\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	if err := repo.SetRoles(context.Background(), "u-1", nil); err != nil {
		t.Fatalf("SetRoles error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
