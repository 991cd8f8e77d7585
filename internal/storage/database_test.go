package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/storage"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/testutil"
)

const (
	testVisitorIDValue               = "visitor-123"
	testOtherVisitorIDValue          = "visitor-456"
	testUnsupportedDriverName        = "unsupported-driver"
	testUnsupportedDriverDescription = "unsupported driver"
	testMissingDriverDescription     = "missing driver"
	testMissingDataSourceDescription = "missing data source"
	testMissingPostgresDescription   = "missing postgres data source"
)

func TestOpenDatabaseWithSQLiteConfiguration(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)

	anchor, anchorErr := model.NewVisitorAnchor(model.VisitorAnchorInput{
		VisitorID: testVisitorIDValue,
		AnchorKey: model.VisitorAnchorKey(24, model.TimeUnitHours),
	})
	require.NoError(t, anchorErr)
	require.NoError(t, database.Create(&anchor).Error)

	var fetched model.VisitorAnchor
	require.NoError(t, database.First(&fetched, "id = ?", anchor.ID).Error)
	require.Equal(t, testVisitorIDValue, fetched.VisitorID)

	duplicate, duplicateErr := model.NewVisitorAnchor(model.VisitorAnchorInput{
		VisitorID: testVisitorIDValue,
		AnchorKey: anchor.AnchorKey,
	})
	require.NoError(t, duplicateErr)
	require.Error(t, database.Create(&duplicate).Error)
}

func TestOpenDatabaseValidation(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)

	testCases := []struct {
		name              string
		configuration     storage.Config
		expectedRootError error
	}{
		{
			name: testMissingDriverDescription,
			configuration: storage.Config{
				DriverName:     "",
				DataSourceName: sqliteDatabase.DataSourceName(),
			},
			expectedRootError: storage.ErrMissingDatabaseDriverName,
		},
		{
			name: testUnsupportedDriverDescription,
			configuration: storage.Config{
				DriverName:     testUnsupportedDriverName,
				DataSourceName: sqliteDatabase.DataSourceName(),
			},
			expectedRootError: storage.ErrUnsupportedDatabaseDriver,
		},
		{
			name: testMissingDataSourceDescription,
			configuration: storage.Config{
				DriverName:     storage.DriverNameSQLite,
				DataSourceName: "",
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
		{
			name: testMissingPostgresDescription,
			configuration: storage.Config{
				DriverName:     storage.DriverNamePostgres,
				DataSourceName: "  ",
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			_, openErr := storage.OpenDatabase(testCase.configuration)
			require.Error(testingT, openErr)
			require.True(testingT, errors.Is(openErr, testCase.expectedRootError))
		})
	}
}

func TestVisitorAnchorStoreKeepsFirstVisit(t *testing.T) {
	database := testutil.OpenMigratedDatabase(t)
	store := storage.NewVisitorAnchorStore(database)
	anchorKey := model.VisitorAnchorKey(30, model.TimeUnitMinutes)
	firstVisit := time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC)

	stored, err := store.FirstVisit(context.Background(), testVisitorIDValue, anchorKey, firstVisit)
	require.NoError(t, err)
	require.True(t, firstVisit.Equal(stored))

	later, err := store.FirstVisit(context.Background(), testVisitorIDValue, anchorKey, firstVisit.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, firstVisit.Equal(later))

	otherVisitor, err := store.FirstVisit(context.Background(), testOtherVisitorIDValue, anchorKey, firstVisit.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, firstVisit.Add(time.Hour).Equal(otherVisitor))

	otherKey, err := store.FirstVisit(context.Background(), testVisitorIDValue, model.VisitorAnchorKey(31, model.TimeUnitMinutes), firstVisit.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, firstVisit.Add(2*time.Hour).Equal(otherKey))

	var anchorCount int64
	require.NoError(t, database.Model(&model.VisitorAnchor{}).Count(&anchorCount).Error)
	require.Equal(t, int64(3), anchorCount)
}

func TestVisitorAnchorStoreRejectsMissingInput(t *testing.T) {
	var missingStore *storage.VisitorAnchorStore
	_, err := missingStore.FirstVisit(context.Background(), testVisitorIDValue, "key", time.Now())
	require.ErrorIs(t, err, storage.ErrMissingDatabase)

	store := storage.NewVisitorAnchorStore(testutil.OpenMigratedDatabase(t))
	_, err = store.FirstVisit(context.Background(), "", "key", time.Now())
	require.ErrorIs(t, err, model.ErrInvalidVisitorID)
}
