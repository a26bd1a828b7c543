package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/database/dbtest"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/tours/db"
)

func newTour(name, location string) *models.Tour {
	now := time.Now().UTC()
	return &models.Tour{ID: uuid.New().String(), Name: name, Location: location, CreatedAt: now, UpdatedAt: now}
}

func TestTourQueries(t *testing.T) {
	d := db.New(dbtest.Open(t))
	ctx := context.Background()

	require.NoError(t, d.CreateTour(ctx, newTour("Douro Valley Wine Walk", "Porto")))
	require.NoError(t, d.CreateTour(ctx, newTour("Ribeira Night Walk", "Porto")))
	require.NoError(t, d.CreateTour(ctx, newTour("Alfama Food Tour", "Lisbon")))

	all, err := d.ListTours(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "Alfama Food Tour", all[0].Name)

	porto, err := d.ListToursByLocation(ctx, "porto")
	require.NoError(t, err)
	assert.Len(t, porto, 2)

	walks, err := d.SearchTours(ctx, "WALK")
	require.NoError(t, err)
	assert.Len(t, walks, 2)

	exists, err := d.TourNameExists(ctx, "Alfama Food Tour")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = d.GetTourByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGroupDeleteCascadesMembers(t *testing.T) {
	bunDB := dbtest.Open(t)
	d := db.New(bunDB)
	ctx := context.Background()

	tour := newTour("Sintra Day Trip", "Sintra")
	require.NoError(t, d.CreateTour(ctx, tour))

	group := &models.Group{ID: uuid.New().String(), Name: "Sintra Friends", LeaderID: "leader", TourID: tour.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, d.CreateGroup(ctx, group))

	for _, userID := range []string{"leader", "u-2", "u-3"} {
		require.NoError(t, d.AddMember(ctx, &models.GroupMember{
			ID: uuid.New().String(), GroupID: group.ID, UserID: userID, JoinedAt: time.Now().UTC(),
		}))
	}
	err := d.AddMember(ctx, &models.GroupMember{ID: uuid.New().String(), GroupID: group.ID, UserID: "u-2", JoinedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	groupID := group.ID
	booking := &models.Booking{
		ID: uuid.New().String(), UserID: "u-2", TourID: tour.ID, GroupID: &groupID, TotalAmount: 80,
		PaymentStatus: models.BookingPending, BookingType: models.BookingGroup,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	_, err = bunDB.NewInsert().Model(booking).Exec(ctx)
	require.NoError(t, err)

	loaded, err := d.GetGroupByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Members, 3)

	led, err := d.ListGroupsByLeader(ctx, "leader")
	require.NoError(t, err)
	assert.Len(t, led, 1)

	assert.ErrorIs(t, d.DeleteTour(ctx, tour.ID), apperror.ErrConflict)

	require.NoError(t, d.DeleteGroup(ctx, group.ID))

	members, err := d.ListMembers(ctx, group.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	var reloaded models.Booking
	require.NoError(t, bunDB.NewSelect().Model(&reloaded).Where("b.id = ?", booking.ID).Scan(ctx))
	assert.Nil(t, reloaded.GroupID)

	assert.ErrorIs(t, d.DeleteGroup(ctx, group.ID), apperror.ErrNotFound)
}

func TestDeleteTour(t *testing.T) {
	d := db.New(dbtest.Open(t))
	ctx := context.Background()

	tour := newTour("Azores Whale Watching", "Ponta Delgada")
	require.NoError(t, d.CreateTour(ctx, tour))

	require.NoError(t, d.DeleteTour(ctx, tour.ID))
	assert.ErrorIs(t, d.DeleteTour(ctx, tour.ID), apperror.ErrNotFound)
}
