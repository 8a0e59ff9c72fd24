package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect/internal/infra/persistence/memory"
	"medconnect/pkg/domain"
)

func setupMockStore(t *testing.T, rows *sqlmock.Rows) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS state")).WillReturnResult(sqlmock.NewResult(0, 0))
	if rows == nil {
		rows = sqlmock.NewRows([]string{"bucket", "payload"})
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT bucket, payload FROM state")).WillReturnRows(rows)

	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driverName)
		return db, nil
	})
	t.Cleanup(restore)

	store, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store, mock
}

func TestNewStoreHydratesFromSnapshotRows(t *testing.T) {
	rows := sqlmock.NewRows([]string{"bucket", "payload"}).
		AddRow("communities", []byte(`[{"id":"3","name":"Heart Health Warriors","member_count":2156},{"id":"1","name":"Breast Cancer Support Network","member_count":1247}]`)).
		AddRow("unknown_bucket", []byte(`{"ignored":true}`)).
		AddRow("trials", []byte(``))

	store, mock := setupMockStore(t, rows)

	communities := store.ListCommunities()
	require.Len(t, communities, 2)
	assert.Equal(t, "3", communities[0].ID)
	assert.Equal(t, "1", communities[1].ID)
	assert.Equal(t, 1247, communities[1].MemberCount)
	assert.Empty(t, store.ListTrials())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransactionUpsertsEveryBucket(t *testing.T) {
	store, mock := setupMockStore(t, nil)

	mock.ExpectBegin()
	for _, bucket := range memory.SnapshotBuckets {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO state(bucket,payload)")).
			WithArgs(bucket, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCommunity(domain.Community{Base: domain.Base{ID: "c1"}, Name: "Support"})
		return err
	})
	require.NoError(t, err)
	_, ok := store.GetCommunity("c1")
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransactionRollsBackOnUpsertFailure(t *testing.T) {
	store, mock := setupMockStore(t, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO state(bucket,payload)")).
		WithArgs("trials", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateTrial(domain.Trial{Base: domain.Base{ID: "t1"}})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert trials")
	_, ok := store.GetTrial("t1")
	assert.False(t, ok, "trial must not be visible after a failed snapshot write")
	assert.Empty(t, store.ListTrials())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransactionCommitFailureKeepsPriorState(t *testing.T) {
	store, mock := setupMockStore(t, nil)

	mock.ExpectBegin()
	for _, bucket := range memory.SnapshotBuckets {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO state(bucket,payload)")).
			WithArgs(bucket, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCommunity(domain.Community{Base: domain.Base{ID: "c1"}, Name: "Support"})
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.Empty(t, store.ListCommunities())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransactionSkipsPersistWhenFnFails(t *testing.T) {
	store, mock := setupMockStore(t, nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreSurfacesPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	_, err = NewStore(context.Background(), "postgres://example", domain.NewRulesEngine())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStoreSurfacesOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("bad dsn") })
	defer restore()
	_, err := NewStore(context.Background(), "postgres://example", domain.NewRulesEngine())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open postgres")
}
