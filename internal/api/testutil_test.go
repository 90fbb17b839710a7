package api

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/retrocast/retrocast/internal/catalog"
	"github.com/retrocast/retrocast/internal/db"
	"github.com/retrocast/retrocast/internal/epoch"
	"github.com/retrocast/retrocast/internal/logger"
	"github.com/retrocast/retrocast/internal/manifest"
	"github.com/retrocast/retrocast/internal/models"
	"github.com/retrocast/retrocast/internal/position"
	"github.com/retrocast/retrocast/internal/session"
	"github.com/retrocast/retrocast/internal/state"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock is an adjustable deterministic clock
type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.at
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.at = f.at.Add(d)
	f.mu.Unlock()
}

type testEnv struct {
	router   *gin.Engine
	database *db.DB
	repos    *db.Repositories
	clk      *fakeClock
	states   *state.Service
	sessions *session.Service
}

// setupTestEnv builds a router wired exactly like the server, on a
// temporary database with the epoch pinned to a fixed instant.
func setupTestEnv(t *testing.T) (*testEnv, func()) {
	t.Helper()

	logger.Init("error", false)
	gin.SetMode(gin.TestMode)

	tmpDir := t.TempDir()
	database, err := db.New(filepath.Join(tmpDir, "test.db"), true)
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	err = db.RunMigrations(sqlDB, "file://../../migrations")
	require.NoError(t, err)

	repos := db.NewRepositories(database)

	clk := &fakeClock{at: testEpoch}
	epochs := epoch.NewStore(repos.Epoch, clk)
	_, err = epochs.GetOrInit(context.Background())
	require.NoError(t, err)

	catalogSvc := catalog.NewService(repos, 300*time.Second)
	states := state.NewService(repos, clk, 200*time.Millisecond, 4)
	positions := position.NewService(catalogSvc, epochs, states, clk, 3*time.Second, 60*time.Second)
	manifests := manifest.NewService(catalogSvc, epochs, clk)
	sessions := session.NewService(repos, 20*time.Millisecond)

	router := gin.New()
	apiGroup := router.Group("/api")
	SetupHealthRoutes(apiGroup, database, clk)
	SetupChannelRoutes(apiGroup, repos, states)
	SetupPositionRoutes(apiGroup, positions, states)
	SetupManifestRoutes(apiGroup, manifests)
	SetupSessionRoutes(apiGroup, sessions)

	env := &testEnv{
		router:   router,
		database: database,
		repos:    repos,
		clk:      clk,
		states:   states,
		sessions: sessions,
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sessions.Shutdown(ctx)
		states.Shutdown()
		require.NoError(t, database.Close())
	}
	return env, cleanup
}

// seedChannel creates a channel with a default playlist of the given
// durations.
func seedChannel(t *testing.T, repos *db.Repositories, name string, durations ...int64) *models.Channel {
	t.Helper()

	ch := models.NewChannel(name, nil)
	require.NoError(t, repos.Channels.Create(context.Background(), ch))

	for i, d := range durations {
		v := models.NewVideo(ch.ID, uuid.NewString(), name, d, i, nil)
		require.NoError(t, repos.Videos.Create(context.Background(), v))
	}
	return ch
}
