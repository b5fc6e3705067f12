package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/storage"
)

const uniqueViolation = "23505"

type TenantRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewTenantRepo(db *sqlx.DB) *TenantRepo {
	return &TenantRepo{db: db, now: time.Now}
}

type tenantRow struct {
	ID                  uuid.UUID  `db:"id"`
	Name                string     `db:"name"`
	Email               string     `db:"email"`
	DomainRequestID     *uuid.UUID `db:"domain_request_id"`
	DomainHostname      *string    `db:"domain_hostname"`
	DomainApex          *string    `db:"domain_apex"`
	DomainCanonical     *string    `db:"domain_canonical"`
	DomainRequestedAt   *time.Time `db:"domain_requested_at"`
	DomainStatus        string     `db:"domain_status"`
	MonitoringStartedAt *time.Time `db:"monitoring_started_at"`
	VerifiedAt          *time.Time `db:"verified_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

const selectTenant = `
        SELECT id, name, email,
               domain_request_id, domain_hostname, domain_apex,
               domain_canonical, domain_requested_at, domain_status,
               monitoring_started_at, verified_at, updated_at
        FROM tenants`

const updateTenant = `
        UPDATE tenants SET
            domain_request_id     = :domain_request_id,
            domain_hostname       = :domain_hostname,
            domain_apex           = :domain_apex,
            domain_canonical      = :domain_canonical,
            domain_requested_at   = :domain_requested_at,
            domain_status         = :domain_status,
            monitoring_started_at = :monitoring_started_at,
            verified_at           = :verified_at,
            updated_at            = :updated_at
        WHERE id = :id`

func (r *TenantRepo) GetTenant(ctx context.Context, id uuid.UUID) (*core.Tenant, error) {
	var row tenantRow
	err := r.db.GetContext(ctx, &row, selectTenant+` WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return row.toCore(), nil
}

func (r *TenantRepo) ListByStatus(ctx context.Context, status core.DomainStatus) ([]*core.Tenant, error) {
	var rows []tenantRow
	err := r.db.SelectContext(ctx, &rows, selectTenant+` WHERE domain_status = $1 ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tenants by status: %w", err)
	}

	tenants := make([]*core.Tenant, 0, len(rows))
	for i := range rows {
		tenants = append(tenants, rows[i].toCore())
	}
	return tenants, nil
}

// Update locks the tenant row with SELECT ... FOR UPDATE so concurrent
// callers observe each other's writes.
func (r *TenantRepo) Update(ctx context.Context, id uuid.UUID, fn storage.UpdateFunc) (*core.Tenant, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var row tenantRow
	err = tx.GetContext(ctx, &row, selectTenant+` WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock tenant: %w", err)
	}

	t := row.toCore()
	changed, err := fn(t)
	if err != nil {
		return nil, err
	}
	if !changed {
		return row.toCore(), nil
	}

	t.UpdatedAt = r.now().UTC()
	if _, err := tx.NamedExecContext(ctx, updateTenant, fromCore(t)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, core.ErrHostnameInUse
		}
		return nil, fmt.Errorf("update tenant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

func (row tenantRow) toCore() *core.Tenant {
	t := &core.Tenant{
		ID:                  row.ID,
		Name:                row.Name,
		Email:               row.Email,
		Status:              core.DomainStatus(row.DomainStatus),
		MonitoringStartedAt: row.MonitoringStartedAt,
		VerifiedAt:          row.VerifiedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if row.DomainRequestID != nil && row.DomainHostname != nil {
		req := &core.DomainRequest{
			ID:       *row.DomainRequestID,
			Hostname: *row.DomainHostname,
		}
		if row.DomainApex != nil {
			req.Apex = *row.DomainApex
		}
		if row.DomainCanonical != nil {
			req.Canonical = core.Canonical(*row.DomainCanonical)
		}
		if row.DomainRequestedAt != nil {
			req.RequestedAt = *row.DomainRequestedAt
		}
		t.Domain = req
	}
	return t
}

func fromCore(t *core.Tenant) tenantRow {
	row := tenantRow{
		ID:                  t.ID,
		Name:                t.Name,
		Email:               t.Email,
		DomainStatus:        string(t.Status),
		MonitoringStartedAt: t.MonitoringStartedAt,
		VerifiedAt:          t.VerifiedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if d := t.Domain; d != nil {
		canonical := string(d.Canonical)
		row.DomainRequestID = &d.ID
		row.DomainHostname = &d.Hostname
		row.DomainApex = &d.Apex
		row.DomainCanonical = &canonical
		row.DomainRequestedAt = &d.RequestedAt
	}
	return row
}
