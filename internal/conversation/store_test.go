package conversation

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed, skipping container-based test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestStore(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)

	t.Run("create sets ttl", func(t *testing.T) {
		ttl, err := client.TTL(ctx, key(conv.ID)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 23*time.Hour)
	})

	t.Run("append keeps order and tracks recipe", func(t *testing.T) {
		updated, err := store.Append(ctx, conv.ID,
			Message{Role: RoleUser, Content: "pancakes please"},
			Message{Role: RoleAssistant, Content: "Pancakes", RecipeID: "r1"},
		)
		require.NoError(t, err)
		require.Len(t, updated.Messages, 2)
		assert.Equal(t, RoleUser, updated.Messages[0].Role)
		assert.Equal(t, "r1", updated.RecipeID)
		assert.False(t, updated.Messages[1].At.IsZero())

		got, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.Messages[1].Content, got.Messages[1].Content)
		assert.Equal(t, "r1", got.RecipeID)
	})

	t.Run("append refreshes ttl", func(t *testing.T) {
		require.NoError(t, client.Expire(ctx, key(conv.ID), time.Minute).Err())
		_, err := store.Append(ctx, conv.ID, Message{Role: RoleUser, Content: "more"})
		require.NoError(t, err)
		ttl, err := client.TTL(ctx, key(conv.ID)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Hour)
	})

	t.Run("concurrent appends are not lost", func(t *testing.T) {
		fresh, err := store.Create(ctx)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.Append(ctx, fresh.ID, Message{Role: RoleUser, Content: fmt.Sprint(i)})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := store.Get(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Len(t, got.Messages, 4)
	})

	t.Run("missing conversation", func(t *testing.T) {
		_, err := store.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Append(ctx, "does-not-exist", Message{Role: RoleUser})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, conv.ID))
		assert.ErrorIs(t, store.Delete(ctx, conv.ID), ErrNotFound)
		_, err := store.Get(ctx, conv.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
