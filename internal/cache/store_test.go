package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalfonso89/currency-converter/internal/models"
)

func newSnapshot(code string, expiry time.Time) *models.RateSnapshot {
	return &models.RateSnapshot{
		Result:             "success",
		TimeLastUpdateUnix: expiry.Add(-24 * time.Hour).Unix(),
		TimeNextUpdateUnix: expiry.Unix(),
		BaseCode:           code,
		ConversionRates:    map[string]float64{code: 1, "GBP": 0.79, "JPY": 149.5},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// insertRow bypasses Insert so tests can seed expired or corrupt rows.
func insertRow(t *testing.T, store *Store, code string, expiry int64, data string) {
	t.Helper()
	_, err := store.database.Exec(insertQuery, code, expiry, data)
	require.NoError(t, err)
}

func countRows(t *testing.T, store *Store, code string) int {
	t.Helper()
	var count int
	require.NoError(t, store.database.QueryRow(`SELECT COUNT(*) FROM cache WHERE code = ?`, code).Scan(&count))
	return count
}

func TestOpen_CreatesDirectoryAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".currency-converter", "nested", "cache.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, newSnapshot("USD", time.Now().Add(time.Hour))))
	require.NoError(t, store.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Initialize(ctx))

	snapshot, found, err := reopened.Lookup(ctx, "USD")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "USD", snapshot.BaseCode)
}

func TestOpen_DirectoryCannotBeCreated(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not a directory"), 0o644))

	_, err := Open(context.Background(), filepath.Join(blocker, "cache", "cache.db"))
	require.Error(t, err)
	assert.True(t, models.HasType(err, models.ErrorTypeStorageInit), "got %v", err)
}

func TestStore_LookupMiss(t *testing.T) {
	store := openTestStore(t)

	snapshot, found, err := store.Lookup(context.Background(), "CHF")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, snapshot)
}

func TestStore_InsertThenLookup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	expiry := time.Now().Add(6 * time.Hour).Truncate(time.Second)

	require.NoError(t, store.Insert(ctx, newSnapshot("EUR", expiry)))

	snapshot, found, err := store.Lookup(ctx, "EUR")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "EUR", snapshot.BaseCode)
	assert.Equal(t, expiry.Unix(), snapshot.TimeNextUpdateUnix)
	assert.Equal(t, 0.79, snapshot.ConversionRates["GBP"])

	var storedExpiry int64
	require.NoError(t, store.database.QueryRow(`SELECT expiry FROM cache WHERE code = 'EUR'`).Scan(&storedExpiry))
	assert.Equal(t, expiry.Unix(), storedExpiry)
}

func TestStore_InsertReplacesExistingRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	first := newSnapshot("USD", time.Now().Add(time.Hour))
	second := newSnapshot("USD", time.Now().Add(2*time.Hour))
	second.ConversionRates["GBP"] = 0.8

	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	assert.Equal(t, 1, countRows(t, store, "USD"))
	snapshot, found, err := store.Lookup(ctx, "USD")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0.8, snapshot.ConversionRates["GBP"])
}

func TestStore_LookupPrefersFreshestDuplicate(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	insertRow(t, store, "USD", now.Add(time.Hour).Unix(), `{"base_code":"USD","conversion_rates":{"GBP":0.7}}`)
	insertRow(t, store, "USD", now.Add(3*time.Hour).Unix(), `{"base_code":"USD","conversion_rates":{"GBP":0.9}}`)

	snapshot, found, err := store.Lookup(context.Background(), "USD")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0.9, snapshot.ConversionRates["GBP"])
}

func TestStore_InsertRejectsExpiredSnapshot(t *testing.T) {
	store := openTestStore(t)

	err := store.Insert(context.Background(), newSnapshot("USD", time.Now().Add(-time.Minute)))
	assert.True(t, models.HasType(err, models.ErrorTypeStorage), "got %v", err)
	assert.Equal(t, 0, countRows(t, store, "USD"))

	err = store.Insert(context.Background(), nil)
	assert.True(t, models.HasType(err, models.ErrorTypeSerialize), "got %v", err)
}

func TestStore_LookupCorruptPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{not json"},
		{"array", "[]"},
		{"null", "null"},
		{"empty object", "{}"},
		{"unrelated object", `{"unrelated":1}`},
		{"no rates", `{"base_code":"USD","conversion_rates":{}}`},
		{"negative rate", `{"base_code":"USD","conversion_rates":{"GBP":-0.79}}`},
		{"other base", `{"base_code":"EUR","conversion_rates":{"GBP":0.86}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openTestStore(t)
			insertRow(t, store, "USD", time.Now().Add(time.Hour).Unix(), tt.payload)

			snapshot, found, err := store.Lookup(context.Background(), "USD")
			assert.Nil(t, snapshot)
			assert.False(t, found)
			assert.True(t, models.HasType(err, models.ErrorTypeDeserialize), "got %v", err)
		})
	}
}

func TestStore_PurgeExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		offsets []int64 // expiry relative to now, in seconds
	}{
		{"empty", nil},
		{"all expired", []int64{-1, -60, -86400}},
		{"none expired", []int64{0, 1, 3600}},
		{"mixed", []int64{-3600, -1, 0, 1, 7200}},
		{"boundary only", []int64{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openTestStore(t)
			expectedDeleted := int64(0)
			for i, offset := range tt.offsets {
				code := string(rune('A'+i)) + "XX"
				insertRow(t, store, code, now.Unix()+offset, `{}`)
				if offset < 0 {
					expectedDeleted++
				}
			}

			deleted, err := store.PurgeExpired(context.Background(), now)
			require.NoError(t, err)
			assert.Equal(t, expectedDeleted, deleted)

			for i, offset := range tt.offsets {
				code := string(rune('A'+i)) + "XX"
				if offset < 0 {
					assert.Equal(t, 0, countRows(t, store, code), "%s should be purged", code)
				} else {
					assert.Equal(t, 1, countRows(t, store, code), "%s should be kept", code)
				}
			}
		})
	}
}

func TestStore_PurgeThenLookupMissesStaleRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	insertRow(t, store, "EUR", time.Now().Add(-time.Hour).Unix(), `{"base_code":"EUR","conversion_rates":{"USD":1.1}}`)

	// Without a purge the stale row is still served.
	_, found, err := store.Lookup(ctx, "EUR")
	require.NoError(t, err)
	assert.True(t, found)

	_, err = store.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)

	_, found, err = store.Lookup(ctx, "EUR")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_StorageFailures(t *testing.T) {
	ctx := context.Background()
	failure := errors.New("disk I/O error")

	t.Run("purge", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()
		mock.ExpectExec(regexp.QuoteMeta(purgeQuery)).WillReturnError(failure)

		_, err = NewWithDB(database).PurgeExpired(ctx, time.Now())
		assert.True(t, models.HasType(err, models.ErrorTypeStorage), "got %v", err)
		assert.ErrorIs(t, err, failure)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()
		mock.ExpectQuery(regexp.QuoteMeta(lookupQuery)).WithArgs("USD").WillReturnError(failure)

		_, found, err := NewWithDB(database).Lookup(ctx, "USD")
		assert.False(t, found)
		assert.True(t, models.HasType(err, models.ErrorTypeStorage), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert rolls back", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(deleteByCodeQuery)).WithArgs("USD").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(insertQuery)).WillReturnError(failure)
		mock.ExpectRollback()

		err = NewWithDB(database).Insert(ctx, newSnapshot("USD", time.Now().Add(time.Hour)))
		assert.True(t, models.HasType(err, models.ErrorTypeStorage), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("initialize", func(t *testing.T) {
		database, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer database.Close()
		mock.ExpectExec(regexp.QuoteMeta(createTableQuery)).WillReturnError(failure)

		err = NewWithDB(database).Initialize(ctx)
		assert.True(t, models.HasType(err, models.ErrorTypeStorageInit), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
