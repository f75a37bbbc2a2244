package translator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEngine answers deterministically and tracks call volume.
type countingEngine struct {
	calls atomic.Int32
	delay time.Duration
	fail  atomic.Bool
}

func (e *countingEngine) Translate(_ context.Context, text, _, _ string) (string, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.fail.Load() {
		return "", errors.New("engine down")
	}
	return "訳:" + text, nil
}

func (e *countingEngine) Detect(_ context.Context, _ string) (string, error) {
	e.calls.Add(1)
	return "zh-CN", nil
}

func setupRedisCache(t *testing.T, inner Engine) (*CachingEngine, *miniredis.Miniredis, goredis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCachingEngine(inner, client, testLogger()), mr, client
}

func TestCachingEngine_LocalCacheHit(t *testing.T) {
	engine := &countingEngine{}
	cache := NewCachingEngine(engine, nil, testLogger())

	first, err := cache.Translate(context.Background(), "黑色", "zh", "ja")
	require.NoError(t, err)
	second, err := cache.Translate(context.Background(), "黑色", "zh", "ja")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestCachingEngine_RedisSharedAcrossInstances(t *testing.T) {
	engine1 := &countingEngine{}
	cache1, mr, client := setupRedisCache(t, engine1)

	out, err := cache1.Translate(context.Background(), "白色", "zh", "ja")
	require.NoError(t, err)
	assert.Equal(t, "訳:白色", out)
	require.Len(t, mr.Keys(), 1)

	// A fresh process with an empty local cache reads the Redis entry
	// instead of calling the engine again.
	engine2 := &countingEngine{}
	cache2 := NewCachingEngine(engine2, client, testLogger())

	out, err = cache2.Translate(context.Background(), "白色", "zh", "ja")
	require.NoError(t, err)
	assert.Equal(t, "訳:白色", out)
	assert.Zero(t, engine2.calls.Load())
}

func TestCachingEngine_SingleflightCollapsesConcurrentMisses(t *testing.T) {
	engine := &countingEngine{delay: 20 * time.Millisecond}
	cache := NewCachingEngine(engine, nil, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := cache.Translate(context.Background(), "红色", "zh", "ja")
			assert.NoError(t, err)
			assert.Equal(t, "訳:红色", out)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestCachingEngine_ErrorsAreNotCached(t *testing.T) {
	engine := &countingEngine{}
	engine.fail.Store(true)
	cache := NewCachingEngine(engine, nil, testLogger())

	_, err := cache.Translate(context.Background(), "蓝色", "zh", "ja")
	require.Error(t, err)

	engine.fail.Store(false)
	out, err := cache.Translate(context.Background(), "蓝色", "zh", "ja")
	require.NoError(t, err)
	assert.Equal(t, "訳:蓝色", out)
	assert.Equal(t, int32(2), engine.calls.Load())
}

func TestCachingEngine_DetectUsesSeparateKeyspace(t *testing.T) {
	engine := &countingEngine{}
	cache := NewCachingEngine(engine, nil, testLogger())

	_, err := cache.Detect(context.Background(), "黑色")
	require.NoError(t, err)
	_, err = cache.Translate(context.Background(), "黑色", "zh", "ja")
	require.NoError(t, err)

	assert.Equal(t, int32(2), engine.calls.Load())
}
