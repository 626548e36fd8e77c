package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/coursedesk/coursedesk-api/internal/models"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func userRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "full_name", "email", "role", "password_hash", "active", "last_login_at", "created_at", "updated_at"}).
		AddRow("user-1", "Alice Kim", "alice@example.com", models.RoleStudent, "hash", true, nil, now, now)
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("alice@example.com").
		WillReturnRows(userRows())

	user, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListWithRoleAndSearch(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	role := models.RoleStudent
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY full_name ASC LIMIT 20 OFFSET 20")).
		WithArgs(role, "%ali%").
		WillReturnRows(userRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE")).
		WithArgs(role, "%ali%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	users, total, err := repo.List(context.Background(), models.UserFilter{
		Role:   &role,
		Search: "ali",
		Page:   2,
		Limit:  20,
	})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, 21, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "Alice Kim", "alice@example.com", models.RoleStudent, "hash", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{
		FullName:     "Alice Kim",
		Email:        "alice@example.com",
		Role:         models.RoleStudent,
		PasswordHash: "hash",
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCountByRole(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE role = $1")).
		WithArgs(models.RoleTeacher).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	total, err := repo.CountByRole(context.Background(), models.RoleTeacher)
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeRefreshToken(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "rt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "rt-1", time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}
