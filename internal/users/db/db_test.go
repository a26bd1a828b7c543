package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/database/dbtest"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/users/db"
)

func seedUser(t *testing.T, d *db.DB, email string, role models.Role) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         "Test " + string(role),
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, d.CreateUser(context.Background(), u))
	return u
}

func seedBookingWithPayment(t *testing.T, bunDB *bun.DB, userID string, status models.PaymentStatus) (*models.Booking, *models.Payment) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	tour := &models.Tour{ID: uuid.New().String(), Name: "Tour " + uuid.NewString(), Location: "Lisbon", CreatedAt: now, UpdatedAt: now}
	_, err := bunDB.NewInsert().Model(tour).Exec(ctx)
	require.NoError(t, err)

	booking := &models.Booking{
		ID:            uuid.New().String(),
		UserID:        userID,
		TourID:        tour.ID,
		TotalAmount:   100,
		PaymentStatus: models.BookingPending,
		BookingType:   models.BookingIndividual,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err = bunDB.NewInsert().Model(booking).Exec(ctx)
	require.NoError(t, err)

	payment := &models.Payment{
		ID:                 uuid.New().String(),
		BookingID:          booking.ID,
		Amount:             50,
		Status:             status,
		ProcessorPaymentID: "pi_" + uuid.NewString(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	_, err = bunDB.NewInsert().Model(payment).Exec(ctx)
	require.NoError(t, err)
	return booking, payment
}

func TestUserLookups(t *testing.T) {
	bunDB := dbtest.Open(t)
	d := db.New(bunDB)
	ctx := context.Background()

	admin := seedUser(t, d, "admin@example.com", models.RoleAdmin)
	seedUser(t, d, "a@example.com", models.RoleTraveler)
	seedUser(t, d, "b@example.com", models.RoleTraveler)

	got, err := d.GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", got.Email)

	byEmail, err := d.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, models.RoleTraveler, byEmail.Role)

	missing, err := d.FindByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	_, err = d.GetUserByID(ctx, "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	all, err := d.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	travelers, err := d.ListUsersByRole(ctx, models.RoleTraveler)
	require.NoError(t, err)
	assert.Len(t, travelers, 2)
}

func TestEmailIsUnique(t *testing.T) {
	d := db.New(dbtest.Open(t))
	seedUser(t, d, "dup@example.com", models.RoleTraveler)

	now := time.Now().UTC()
	err := d.CreateUser(context.Background(), &models.User{
		ID: uuid.New().String(), Email: "dup@example.com", Name: "Other", PasswordHash: "x",
		Role: models.RoleTraveler, CreatedAt: now, UpdatedAt: now,
	})
	assert.Error(t, err)
}

func TestDeleteUserCascadesBookings(t *testing.T) {
	bunDB := dbtest.Open(t)
	d := db.New(bunDB)
	ctx := context.Background()

	user := seedUser(t, d, "leaving@example.com", models.RoleTraveler)
	booking, payment := seedBookingWithPayment(t, bunDB, user.ID, models.PaymentFailed)

	require.NoError(t, d.DeleteUser(ctx, user.ID))

	n, err := bunDB.NewSelect().Model((*models.Booking)(nil)).Where("b.id = ?", booking.ID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = bunDB.NewSelect().Model((*models.Payment)(nil)).Where("p.id = ?", payment.ID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = d.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteUserKeepsSettledPayments(t *testing.T) {
	bunDB := dbtest.Open(t)
	d := db.New(bunDB)
	ctx := context.Background()

	user := seedUser(t, d, "paid@example.com", models.RoleTraveler)
	booking, _ := seedBookingWithPayment(t, bunDB, user.ID, models.PaymentConfirmed)

	err := d.DeleteUser(ctx, user.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	n, err := bunDB.NewSelect().Model((*models.Booking)(nil)).Where("b.id = ?", booking.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, d.DeleteUser(ctx, "missing"), apperror.ErrNotFound)
}
