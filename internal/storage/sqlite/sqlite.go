// Package sqlite is a single-node tenant store on SQLite. SQLite has no
// SELECT ... FOR UPDATE, so updates are guarded by a version column and
// retried when another writer got there first.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/storage"
)

const maxAttempts = 5

type Tenant struct {
	ID                  string `gorm:"primaryKey"`
	Name                string `gorm:"not null"`
	Email               string `gorm:"not null"`
	DomainRequestID     *string
	DomainHostname      *string
	DomainApex          *string `gorm:"index"`
	DomainCanonical     *string
	DomainRequestedAt   *time.Time
	DomainStatus        string `gorm:"not null;default:'none';index"`
	MonitoringStartedAt *time.Time
	VerifiedAt          *time.Time
	Version             int64 `gorm:"not null;default:0"`
	UpdatedAt           time.Time
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Tenant{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateTenant seeds a tenant row; tenant CRUD itself lives elsewhere.
func (s *Store) CreateTenant(ctx context.Context, t *core.Tenant) error {
	if t.Status == "" {
		t.Status = core.StatusNone
	}
	row := fromCore(t)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) GetTenant(ctx context.Context, id uuid.UUID) (*core.Tenant, error) {
	var row Tenant
	err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return row.toCore(), nil
}

func (s *Store) ListByStatus(ctx context.Context, status core.DomainStatus) ([]*core.Tenant, error) {
	var rows []Tenant
	err := s.db.WithContext(ctx).
		Where("domain_status = ?", string(status)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list tenants by status: %w", err)
	}

	tenants := make([]*core.Tenant, 0, len(rows))
	for i := range rows {
		tenants = append(tenants, rows[i].toCore())
	}
	return tenants, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, fn storage.UpdateFunc) (*core.Tenant, error) {
	for range maxAttempts {
		var current Tenant
		err := s.db.WithContext(ctx).First(&current, "id = ?", id.String()).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrTenantNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get tenant: %w", err)
		}

		t := current.toCore()
		changed, err := fn(t)
		if err != nil {
			return nil, err
		}
		if !changed {
			return current.toCore(), nil
		}
		t.UpdatedAt = s.now().UTC()

		var applied bool
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if t.Domain != nil && t.Status != core.StatusNone {
				var taken int64
				err := tx.Model(&Tenant{}).
					Where("id <> ? AND domain_apex = ? AND domain_status <> ?", id.String(), t.Domain.Apex, string(core.StatusNone)).
					Count(&taken).Error
				if err != nil {
					return err
				}
				if taken > 0 {
					return core.ErrHostnameInUse
				}
			}

			next := fromCore(t)
			res := tx.Model(&Tenant{}).
				Where("id = ? AND version = ?", id.String(), current.Version).
				Updates(map[string]any{
					"domain_request_id":     next.DomainRequestID,
					"domain_hostname":       next.DomainHostname,
					"domain_apex":           next.DomainApex,
					"domain_canonical":      next.DomainCanonical,
					"domain_requested_at":   next.DomainRequestedAt,
					"domain_status":         next.DomainStatus,
					"monitoring_started_at": next.MonitoringStartedAt,
					"verified_at":           next.VerifiedAt,
					"updated_at":            next.UpdatedAt,
					"version":               current.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			applied = res.RowsAffected == 1
			return nil
		})
		if err != nil {
			if errors.Is(err, core.ErrHostnameInUse) {
				return nil, err
			}
			return nil, fmt.Errorf("update tenant: %w", err)
		}
		if applied {
			return t, nil
		}
	}
	return nil, storage.ErrConflict
}

func (row Tenant) toCore() *core.Tenant {
	t := &core.Tenant{
		ID:                  uuid.MustParse(row.ID),
		Name:                row.Name,
		Email:               row.Email,
		Status:              core.DomainStatus(row.DomainStatus),
		MonitoringStartedAt: row.MonitoringStartedAt,
		VerifiedAt:          row.VerifiedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if row.DomainRequestID != nil && row.DomainHostname != nil {
		req := &core.DomainRequest{
			ID:       uuid.MustParse(*row.DomainRequestID),
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

func fromCore(t *core.Tenant) Tenant {
	row := Tenant{
		ID:                  t.ID.String(),
		Name:                t.Name,
		Email:               t.Email,
		DomainStatus:        string(t.Status),
		MonitoringStartedAt: t.MonitoringStartedAt,
		VerifiedAt:          t.VerifiedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if d := t.Domain; d != nil {
		requestID := d.ID.String()
		canonical := string(d.Canonical)
		row.DomainRequestID = &requestID
		row.DomainHostname = &d.Hostname
		row.DomainApex = &d.Apex
		row.DomainCanonical = &canonical
		row.DomainRequestedAt = &d.RequestedAt
	}
	return row
}
