package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bustrack-backend/internal/auth"
	"bustrack-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_AppendLocation(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	recordedAt := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "bus_locations"`)).
		WithArgs("V1", 5.60, -0.18, 12.0, recordedAt, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := s.AppendLocation(context.Background(), model.BusLocation{
		BusID:      "V1",
		Latitude:   5.60,
		Longitude:  -0.18,
		Speed:      12,
		RecordedAt: recordedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AppendLocation_DefaultsRecordedAt(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "bus_locations"`)).
		WithArgs("V1", 1.0, 2.0, 0.0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := s.AppendLocation(context.Background(), model.BusLocation{
		BusID:     "V1",
		Latitude:  1,
		Longitude: 2,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_RecentLocations(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM "bus_locations" WHERE bus_id = \$1 ORDER BY recorded_at DESC LIMIT \$2`).
		WithArgs("V1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "bus_id", "latitude", "longitude", "speed", "recorded_at"}).
			AddRow(2, "V1", 5.61, -0.19, 10.0, now).
			AddRow(1, "V1", 5.60, -0.18, 12.0, now.Add(-time.Minute)))

	locations, err := s.RecentLocations(context.Background(), "V1", 2)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, 5.61, locations[0].Latitude)
	assert.Equal(t, 5.60, locations[1].Latitude)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_BusIDsForUser(t *testing.T) {
	t.Run("driver gets buses they operate", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		s := NewGormStore(gormDB)

		mock.ExpectQuery(`SELECT "id" FROM "buses" WHERE driver_user_id = \$1`).
			WithArgs("driver-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("V1").AddRow("V2"))

		ids, err := s.BusIDsForUser(context.Background(), "driver-1", auth.RoleDriver)
		require.NoError(t, err)
		assert.Equal(t, []string{"V1", "V2"}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("parent gets buses serving their children", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		s := NewGormStore(gormDB)

		mock.ExpectQuery(`SELECT DISTINCT "bus_id" FROM "children" WHERE parent_user_id = \$1`).
			WithArgs("parent-1").
			WillReturnRows(sqlmock.NewRows([]string{"bus_id"}).AddRow("V1"))

		ids, err := s.BusIDsForUser(context.Background(), "parent-1", auth.RoleParent)
		require.NoError(t, err)
		assert.Equal(t, []string{"V1"}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other roles resolve to nothing", func(t *testing.T) {
		gormDB, _ := newTestDB(t)
		s := NewGormStore(gormDB)

		ids, err := s.BusIDsForUser(context.Background(), "admin-1", auth.RolePlatformAdmin)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}
