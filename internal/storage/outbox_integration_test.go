package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	migrateURL, err := url.Parse(dsn)
	require.NoError(t, err)
	q := migrateURL.Query()
	q.Set("x-migrations-table", "migrations")
	migrateURL.RawQuery = q.Encode()

	m, err := migrate.New("file://../../migrations", migrateURL.String())
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
	srcErr, dbErr := m.Close()
	require.NoError(t, srcErr)
	require.NoError(t, dbErr)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())
	return db
}

func TestOutbox_Postgres_ConcurrentClaimsAreDisjoint(t *testing.T) {
	db := openTestDB(t)
	repo := storage.NewOutboxRepository(db)
	ctx := context.Background()

	const total = 10
	ours := make(map[int64]bool, total)
	for i := 0; i < total; i++ {
		msg := &models.OutboxMessage{
			EventID:      uuid.NewString(),
			ExchangeName: "orders",
			RoutingKey:   models.EventOrderCreated,
			Payload:      []byte(`{}`),
			ContentType:  "application/json",
			MaxRetries:   5,
		}
		require.NoError(t, repo.Insert(ctx, msg))
		ours[msg.ID] = true
	}
	t.Cleanup(func() {
		for id := range ours {
			db.Exec("DELETE FROM outbox WHERE id = $1", id)
		}
	})

	const workers = 4
	claimed := make([][]*models.OutboxMessage, workers)
	errs := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			claimed[i], errs[i] = repo.ClaimPendingMessages(ctx, 3, time.Minute)
		}(i)
	}
	close(start)
	wg.Wait()

	seen := make(map[int64]int)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		for _, msg := range claimed[i] {
			seen[msg.ID]++
			if ours[msg.ID] {
				assert.True(t, msg.NextRetryAt.After(time.Now()), "claimed message must be leased")
			}
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %d claimed more than once", id)
	}

	// пока lease не истёк, захваченное не выдаётся повторно
	again, err := repo.ClaimPendingMessages(ctx, 100, time.Minute)
	require.NoError(t, err)
	for _, msg := range again {
		assert.Zero(t, seen[msg.ID], "message %d returned before lease expiry", msg.ID)
	}
}
