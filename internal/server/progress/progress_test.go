package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	updates []Update
}

func (s *recordingSink) Notify(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

func TestReader_ReportsCumulativeBytes(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	r := NewReader(bytes.NewReader(make([]byte, 10)), sink, Update{UploadID: "u1", Total: 10})

	buf := make([]byte, 4)
	for {
		_, err := r.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}

	require.Len(t, sink.updates, 3)
	assert.Equal(t, int64(4), sink.updates[0].Bytes)
	assert.Equal(t, int64(8), sink.updates[1].Bytes)
	assert.Equal(t, int64(10), sink.updates[2].Bytes)
	assert.False(t, sink.updates[1].Done)
	assert.True(t, sink.updates[2].Done)
	assert.Equal(t, "u1", sink.updates[2].UploadID)
}

func TestRelay_NotifyNeverBlocks(t *testing.T) {
	t.Parallel()

	// Nothing drains the relay, so everything past the buffer is dropped.
	r := NewRelay(&fakePublisher{}, 2, logging.Nop{})
	done := make(chan struct{})
	go func() {
		for i := range 100 {
			r.Notify(Update{Bytes: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked")
	}
	assert.Len(t, r.updates, 2)
}

type fakePublisher struct {
	mu  sync.Mutex
	got []Update
	err error
}

func (f *fakePublisher) Publish(_ context.Context, u Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, u)
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestRelay_RunForwards(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("ignored")}
	r := NewRelay(pub, 8, logging.Nop{})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(stopped)
	}()

	r.Notify(Update{UploadID: "a"})
	r.Notify(Update{UploadID: "b"})
	assert.Eventually(t, func() bool { return pub.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	r.Close()
	<-stopped
	r.Notify(Update{UploadID: "c"})
	assert.Equal(t, 2, pub.count())
}

type fakeRedis struct {
	channel string
	message any
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel, f.message = channel, message
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisPublisher_Publish(t *testing.T) {
	t.Parallel()

	fr := &fakeRedis{}
	p := &RedisPublisher{client: fr}

	require.NoError(t, p.Publish(t.Context(), Update{UploadID: "up-1", Bytes: 5, Total: 10}))
	assert.Equal(t, "cloudvault:upload:up-1", fr.channel)

	var got Update
	require.NoError(t, json.Unmarshal(fr.message.([]byte), &got))
	assert.Equal(t, int64(5), got.Bytes)

	fr.err = errors.New("down")
	assert.Error(t, p.Publish(t.Context(), Update{UploadID: "up-1"}))
}
