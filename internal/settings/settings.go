// Package settings stores the deployment configuration as one versioned,
// strongly-typed row. Updates carry the version they were read at and
// fail on conflict instead of probing columns at runtime.
package settings

import (
	"context"
	"errors"
	"time"

	"dinetab-order-services/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	ErrVersionConflict = errors.New("settings changed since read")
	ErrInvalid         = errors.New("invalid settings")
)

type Settings struct {
	Version        int64     `json:"version"`
	TableCount     int       `json:"tableCount"`
	LoyaltyEnabled bool      `json:"loyaltyEnabled"`
	PointsDivisor  int64     `json:"pointsDivisor"`
	MaxDiscountPct float64   `json:"maxDiscountPct"`
	KDSEnabled     bool      `json:"kdsEnabled"`
	KOTEnabled     bool      `json:"kotEnabled"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func Validate(s Settings) error {
	if s.TableCount < 1 || s.TableCount > 500 {
		return ErrInvalid
	}
	if s.PointsDivisor < 1 {
		return ErrInvalid
	}
	if s.MaxDiscountPct < 0 || s.MaxDiscountPct > 100 {
		return ErrInvalid
	}
	return nil
}

func Load(ctx context.Context, db DBTX) (*Settings, error) {
	s := &Settings{}
	var maxDiscount pgtype.Numeric
	if err := db.QueryRow(ctx, `
		select version, table_count, loyalty_enabled, points_divisor, max_discount_pct, kds_enabled, kot_enabled, updated_at
		from settings where id = 1
	`).Scan(&s.Version, &s.TableCount, &s.LoyaltyEnabled, &s.PointsDivisor, &maxDiscount,
		&s.KDSEnabled, &s.KOTEnabled, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.MaxDiscountPct = utils.NumericToFloat64(maxDiscount)
	return s, nil
}

// Update applies the whole record conditionally on the caller's version.
// A zero rows-affected result means someone else won the write.
func Update(ctx context.Context, db *pgxpool.Pool, next Settings) (*Settings, error) {
	if err := Validate(next); err != nil {
		return nil, err
	}

	tag, err := db.Exec(ctx, `
		update settings
		set version = version + 1,
		    table_count = $1,
		    loyalty_enabled = $2,
		    points_divisor = $3,
		    max_discount_pct = $4,
		    kds_enabled = $5,
		    kot_enabled = $6,
		    updated_at = now()
		where id = 1 and version = $7
	`, next.TableCount, next.LoyaltyEnabled, next.PointsDivisor, next.MaxDiscountPct,
		next.KDSEnabled, next.KOTEnabled, next.Version)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}
	return Load(ctx, db)
}
