package buildref

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/convoy/internal/core/build"
)

func fixedVersion(version string, calls *atomic.Int32) VersionFunc {
	return func(context.Context) (string, error) {
		calls.Add(1)
		return version, nil
	}
}

func TestResolver_LiteralVersion(t *testing.T) {
	var calls atomic.Int32
	r := NewResolver(fixedVersion("abc1234", &calls))

	image, err := r.ImageName(context.Background(), build.Build{Name: "web", Registry: "registry.local:5000", Version: "1.2.3"})

	require.NoError(t, err)
	assert.Equal(t, "registry.local:5000/web:1.2.3", image)
	assert.Equal(t, int32(0), calls.Load())
}

func TestResolver_GitHeadIsMemoised(t *testing.T) {
	var calls atomic.Int32
	r := NewResolver(fixedVersion("abc1234", &calls))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			image, err := r.ImageName(context.Background(), build.Build{Name: "web", Version: build.VersionGitHead})
			assert.NoError(t, err)
			assert.Equal(t, "web:abc1234", image)
		}()
	}
	wg.Wait()

	image, err := r.ImageName(context.Background(), build.Build{Name: "api"})
	require.NoError(t, err)
	assert.Equal(t, "api:abc1234", image)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolver_GitHeadError(t *testing.T) {
	r := NewResolver(func(context.Context) (string, error) {
		return "", errors.New("not a git repository")
	})

	_, err := r.ImageName(context.Background(), build.Build{Name: "web", Version: build.VersionGitHead})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionUnresolved))
	assert.Contains(t, err.Error(), "build 'web'")
	assert.Contains(t, err.Error(), "not a git repository")
}

func TestResolver_EmptyHead(t *testing.T) {
	r := NewResolver(func(context.Context) (string, error) { return "", nil })

	_, err := r.ImageName(context.Background(), build.Build{Name: "web", Version: build.VersionGitHead})
	assert.Error(t, err)
}

func TestGitHead_OutsideRepository(t *testing.T) {
	_, err := GitHead(t.TempDir())(context.Background())
	assert.Error(t, err)
}
