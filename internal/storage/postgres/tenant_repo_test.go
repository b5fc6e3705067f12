package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leozw/domain-activator/internal/core"
)

var columns = []string{
	"id", "name", "email",
	"domain_request_id", "domain_hostname", "domain_apex",
	"domain_canonical", "domain_requested_at", "domain_status",
	"monitoring_started_at", "verified_at", "updated_at",
}

func newMockRepo(t *testing.T) (*TenantRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewTenantRepo(sqlx.NewDb(db, "postgres"))
	return repo, mock
}

func monitoringRow(id, requestID uuid.UUID, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(columns).AddRow(
		id.String(), "Example Shop", "owner@example.com",
		requestID.String(), "shop.example.com", "example.com",
		"apex", at, "monitoring",
		at, nil, at,
	)
}

func TestTenantRepo_UpdateLocksRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, requestID := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE id = $1 FOR UPDATE")).
		WithArgs(id.String()).
		WillReturnRows(monitoringRow(id, requestID, at))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tenants SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Update(context.Background(), id, func(tn *core.Tenant) (bool, error) {
		require.NotNil(t, tn.Domain)
		assert.Equal(t, requestID, tn.Domain.ID)
		assert.Equal(t, core.StatusMonitoring, tn.Status)
		tn.Status = core.StatusVerifiedActive
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusVerifiedActive, got.Status)
	assert.Equal(t, "example.com", got.Domain.Apex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepo_UpdateWithoutChangeRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(id.String()).
		WillReturnRows(monitoringRow(id, uuid.New(), at))
	mock.ExpectRollback()

	got, err := repo.Update(context.Background(), id, func(*core.Tenant) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusMonitoring, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepo_UpdateMissingTenant(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), id, func(*core.Tenant) (bool, error) {
		t.Fatal("update func must not run")
		return false, nil
	})
	require.ErrorIs(t, err, core.ErrTenantNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepo_UpdateApexTaken(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(id.String()).
		WillReturnRows(monitoringRow(id, uuid.New(), time.Now().UTC()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tenants SET")).
		WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), id, func(tn *core.Tenant) (bool, error) {
		tn.Status = core.StatusNone
		return true, nil
	})
	require.ErrorIs(t, err, core.ErrHostnameInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepo_ListByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE domain_status = $1 ORDER BY id")).
		WithArgs("monitoring").
		WillReturnRows(monitoringRow(id, uuid.New(), at))

	tenants, err := repo.ListByStatus(context.Background(), core.StatusMonitoring)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, id, tenants[0].ID)
	require.NotNil(t, tenants[0].MonitoringStartedAt)
	assert.True(t, at.Equal(*tenants[0].MonitoringStartedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
