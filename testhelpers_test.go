package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/nestledger/auth"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// in-memory sqlite: every connection gets its own database, so pin one
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, auth.CreateSchema(context.Background(), db))

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testStack wires the full server-side dependency graph on a live sqlite
// database.
type testStack struct {
	db        *bun.DB
	repo      auth.RepositoryManager
	directory *auth.AccountDirectory
	tokens    *auth.TokenServiceImpl
	registry  *auth.SessionRegistry
	ledger    *auth.ResetLedger
	auther    *auth.Auther
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := setupTestDB(t)
	repo := auth.NewRepositoryManager(db)
	directory := auth.NewAccountDirectory(repo)

	tokens, err := auth.NewTokenService(auth.ConfigValues{
		SigningKey: "test-signing-key",
	})
	require.NoError(t, err)

	registry := auth.NewSessionRegistry(repo, directory)
	ledger := auth.NewResetLedger(repo)
	auther := auth.NewAuthenticator(directory, tokens, registry)

	return &testStack{
		db:        db,
		repo:      repo,
		directory: directory,
		tokens:    tokens,
		registry:  registry,
		ledger:    ledger,
		auther:    auther,
	}
}

// createAccount registers a user directly through the directory and returns
// the id.
func (s *testStack) createAccount(t *testing.T, email, password string) string {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	userID, err := s.directory.Create(context.Background(), email, hash, "Test", "User")
	require.NoError(t, err)

	return userID.String()
}

// countRows is a bare row count for atomicity assertions.
func countRows(t *testing.T, db *bun.DB, table string) int {
	t.Helper()

	var count int
	err := db.NewRaw("SELECT COUNT(*) FROM " + table).Scan(context.Background(), &count)
	require.NoError(t, err)

	return count
}

// fixedClock returns a clock pinned at base that tests can advance.
type fixedClock struct {
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Now()}
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
