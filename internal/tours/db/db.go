package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

// ---------------- TOURS ----------------

func (d *DB) CreateTour(ctx context.Context, tour *models.Tour) error {
	_, err := d.Bun.NewInsert().Model(tour).Exec(ctx)
	return err
}

func (d *DB) GetTourByID(ctx context.Context, id string) (*models.Tour, error) {
	var tour models.Tour
	err := d.Bun.NewSelect().Model(&tour).Where("t.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("tour %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &tour, nil
}

func (d *DB) TourNameExists(ctx context.Context, name string) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Tour)(nil)).Where("t.name = ?", name).Exists(ctx)
}

func (d *DB) ListTours(ctx context.Context) ([]models.Tour, error) {
	var tours []models.Tour
	err := d.Bun.NewSelect().Model(&tours).Order("t.name ASC").Scan(ctx)
	return tours, err
}

func (d *DB) ListToursByLocation(ctx context.Context, location string) ([]models.Tour, error) {
	var tours []models.Tour
	err := d.Bun.NewSelect().
		Model(&tours).
		Where("LOWER(t.location) = ?", strings.ToLower(location)).
		Order("t.name ASC").
		Scan(ctx)
	return tours, err
}

// SearchTours matches a case-insensitive fragment of the tour name.
func (d *DB) SearchTours(ctx context.Context, fragment string) ([]models.Tour, error) {
	var tours []models.Tour
	err := d.Bun.NewSelect().
		Model(&tours).
		Where("LOWER(t.name) LIKE ?", "%"+strings.ToLower(fragment)+"%").
		Order("t.name ASC").
		Scan(ctx)
	return tours, err
}

// DeleteTour refuses while groups or bookings still reference the tour.
func (d *DB) DeleteTour(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		groups, err := tx.NewSelect().Model((*models.Group)(nil)).Where("g.tour_id = ?", id).Count(ctx)
		if err != nil {
			return err
		}
		bookings, err := tx.NewSelect().Model((*models.Booking)(nil)).Where("b.tour_id = ?", id).Count(ctx)
		if err != nil {
			return err
		}
		if groups > 0 || bookings > 0 {
			return apperror.Conflict("tour %s is referenced by %d groups and %d bookings", id, groups, bookings)
		}

		res, err := tx.NewDelete().Model((*models.Tour)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("tour %s not found", id)
		}
		return nil
	})
}

// ---------------- GROUPS ----------------

func (d *DB) CreateGroup(ctx context.Context, group *models.Group) error {
	_, err := d.Bun.NewInsert().Model(group).Exec(ctx)
	return err
}

// GetGroupByID loads the group with its members.
func (d *DB) GetGroupByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := d.Bun.NewSelect().
		Model(&group).
		Relation("Members").
		Where("g.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("group %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (d *DB) ListGroupsByLeader(ctx context.Context, leaderID string) ([]models.Group, error) {
	var groups []models.Group
	err := d.Bun.NewSelect().Model(&groups).Where("g.leader_id = ?", leaderID).Order("g.name ASC").Scan(ctx)
	return groups, err
}

func (d *DB) ListGroupsByTour(ctx context.Context, tourID string) ([]models.Group, error) {
	var groups []models.Group
	err := d.Bun.NewSelect().Model(&groups).Where("g.tour_id = ?", tourID).Order("g.name ASC").Scan(ctx)
	return groups, err
}

func (d *DB) AddMember(ctx context.Context, member *models.GroupMember) error {
	exists, err := d.Bun.NewSelect().
		Model((*models.GroupMember)(nil)).
		Where("gm.group_id = ?", member.GroupID).
		Where("gm.user_id = ?", member.UserID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return apperror.Conflict("user %s is already a member of group %s", member.UserID, member.GroupID)
	}
	_, err = d.Bun.NewInsert().Model(member).Exec(ctx)
	return err
}

func (d *DB) ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := d.Bun.NewSelect().Model(&members).Where("gm.group_id = ?", groupID).Order("gm.joined_at ASC").Scan(ctx)
	return members, err
}

// DeleteGroup removes the group and its members in one transaction. Bookings
// made under the group keep their rows and lose the group reference.
func (d *DB) DeleteGroup(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.GroupMember)(nil)).Where("group_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		if _, err := tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("group_id = NULL").
			Where("group_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("detach bookings: %w", err)
		}
		res, err := tx.NewDelete().Model((*models.Group)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("group %s not found", id)
		}
		return nil
	})
}
