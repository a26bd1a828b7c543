package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func New(db *bun.DB) *DB {
	return &DB{Bun: db}
}

func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := d.Bun.NewInsert().Model(user).Exec(ctx)
	return err
}

// GetUserByID returns a NotFound error when no row matches.
func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("u.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail returns (nil, nil) when the email is unknown.
func (d *DB) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("u.email = ?", email).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.Bun.NewSelect().
		Model(&users).
		Order("u.created_at ASC").
		Scan(ctx)
	return users, err
}

func (d *DB) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := d.Bun.NewSelect().
		Model(&users).
		Where("u.role = ?", role).
		Order("u.created_at ASC").
		Scan(ctx)
	return users, err
}

// DeleteUser removes the user together with their bookings and those
// bookings' payments in one transaction. Confirmed or refunded payments are
// part of the audit trail, so their presence blocks the delete.
func (d *DB) DeleteUser(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.User)(nil)).Where("u.id = ?", id).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NotFound("user %s not found", id)
		}

		led, err := tx.NewSelect().Model((*models.Group)(nil)).Where("g.leader_id = ?", id).Count(ctx)
		if err != nil {
			return err
		}
		if led > 0 {
			return apperror.Conflict("user %s still leads %d groups", id, led)
		}

		bookingIDs := tx.NewSelect().
			Model((*models.Booking)(nil)).
			Column("b.id").
			Where("b.user_id = ?", id)

		settled, err := tx.NewSelect().
			Model((*models.Payment)(nil)).
			Where("p.booking_id IN (?)", bookingIDs).
			Where("p.status IN (?)", bun.In([]models.PaymentStatus{models.PaymentConfirmed, models.PaymentRefunded})).
			Count(ctx)
		if err != nil {
			return err
		}
		if settled > 0 {
			return apperror.InvalidState("user %s has %d settled payments and cannot be deleted", id, settled)
		}

		if _, err := tx.NewDelete().Model((*models.Payment)(nil)).Where("booking_id IN (?)", bookingIDs).Exec(ctx); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.GroupMember)(nil)).Where("user_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete group memberships: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.Booking)(nil)).Where("user_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete bookings: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.User)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
