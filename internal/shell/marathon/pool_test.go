package marathon

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_CachesPerURL(t *testing.T) {
	pool := NewPool(Config{Username: "u", Password: "p", Timeout: time.Second}, nil)

	a, err := pool.Get("http://marathon-a:8080")
	require.NoError(t, err)
	again, err := pool.Get("http://marathon-a:8080/")
	require.NoError(t, err)
	b, err := pool.Get("http://marathon-b:8080")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, "http://marathon-b:8080", b.BaseURL())
	assert.Equal(t, "u", b.username)
	assert.Equal(t, time.Second, b.httpClient.Timeout)
}

func TestPool_ConcurrentGet(t *testing.T) {
	pool := NewPool(Config{}, nil)

	var wg sync.WaitGroup
	clients := make([]*Client, 20)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i], _ = pool.Get("http://marathon:8080")
		}(i)
	}
	wg.Wait()

	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
	assert.Equal(t, 1, pool.Len())
}

func TestPool_InvalidProxy(t *testing.T) {
	pool := NewPool(Config{ProxyURL: "http://[::1"}, nil)

	_, err := pool.Get("http://marathon:8080")
	assert.Error(t, err)
	assert.Equal(t, 0, pool.Len())
}
