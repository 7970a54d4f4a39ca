package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
)

func TestRelayForwardsInOrder(t *testing.T) {
	r := NewStreamingRelay(logger.NewNop(), nil)
	l := &recordingListener{}
	r.Register("s1", l)

	for i := 0; i < 5; i++ {
		r.Publish("s1", fmt.Sprintf("step %d", i))
	}
	r.Publish("other", "ignored")

	assert.Equal(t, []string{"step 0", "step 1", "step 2", "step 3", "step 4"}, l.Messages())
}

func TestRelayDropsWithoutListener(t *testing.T) {
	r := NewStreamingRelay(logger.NewNop(), nil)
	r.Publish("s1", "lost")

	l := &recordingListener{}
	r.Register("s1", l)
	r.Publish("s1", "seen")
	assert.Equal(t, []string{"seen"}, l.Messages())
}

func TestRelayReplacesListener(t *testing.T) {
	r := NewStreamingRelay(logger.NewNop(), nil)
	first, second := &recordingListener{}, &recordingListener{}
	r.Register("s1", first)
	r.Register("s1", second)
	r.Publish("s1", "m")

	assert.Empty(t, first.Messages())
	assert.Equal(t, []string{"m"}, second.Messages())

	// a stale deregister must not remove the newer listener
	r.Deregister("s1", first)
	assert.True(t, r.Listening("s1"))
}

func TestRelayDeregistersOnSendFailure(t *testing.T) {
	r := NewStreamingRelay(logger.NewNop(), nil)
	r.Register("s1", &recordingListener{err: errors.New("closed")})

	r.Publish("s1", "m")
	assert.False(t, r.Listening("s1"))
}

func TestRelayConcurrentPublish(t *testing.T) {
	r := NewStreamingRelay(logger.NewNop(), nil)
	l := &recordingListener{}
	r.Register("s1", l)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Publish("s1", "x")
		}()
	}
	wg.Wait()
	assert.Len(t, l.Messages(), 20)
}
