package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/KamdynS/agentlab/memory/memtest"
	"github.com/google/uuid"
	rds "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *rds.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := rds.ParseURL(url)
	require.NoError(t, err)
	client := rds.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// prefix isolates each test run on a shared server.
func prefix() string { return "agentlab-test-" + uuid.NewString() }

func TestStoreContract(t *testing.T) {
	memtest.RunStore(t, NewStore(newClient(t), time.Minute, prefix()))
}

func TestConversationContract(t *testing.T) {
	memtest.RunConversation(t, NewConversationStore(newClient(t), prefix(), time.Minute))
}

func TestRecent(t *testing.T) {
	cs := NewConversationStore(newClient(t), prefix(), time.Minute)
	ctx := context.Background()
	t.Cleanup(func() { _ = cs.Clear(ctx) })
	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, cs.AppendMessage(ctx, "s", "user", c))
	}
	msgs, err := cs.Recent(ctx, "s", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)
}
