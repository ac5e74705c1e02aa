package redis

import (
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/game-api/internal/pkg/errors"
)

// newTestCacheRepo поднимает miniredis и создаёт CacheRepo поверх него
func newTestCacheRepo(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis должен запуститься")
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	repo, err := NewCacheRepo(client)
	require.NoError(t, err)
	return repo, mr
}

func TestCacheRepo_SetNX(t *testing.T) {
	repo, _ := newTestCacheRepo(t)

	// Первый SetNX захватывает ключ
	ok, err := repo.SetNX("game:lock:player1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "Первый SetNX должен вернуть true")

	// Повторный SetNX на занятый ключ возвращает false
	ok, err = repo.SetNX("game:lock:player1", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "SetNX на существующий ключ должен вернуть false")

	// После удаления ключ снова свободен
	require.NoError(t, repo.Delete("game:lock:player1"))
	ok, err = repo.SetNX("game:lock:player1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheRepo_SetNX_ExpiresWithTTL(t *testing.T) {
	repo, mr := newTestCacheRepo(t)

	ok, err := repo.SetNX("game:req:req-1", 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Продвигаем время miniredis за TTL
	mr.FastForward(2 * time.Second)

	ok, err = repo.SetNX("game:req:req-1", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "После истечения TTL ключ должен быть свободен")
}

func TestCacheRepo_Exists(t *testing.T) {
	repo, _ := newTestCacheRepo(t)

	exists, err := repo.Exists("game:req:req-1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.SetNX("game:req:req-1", 1, time.Minute)
	require.NoError(t, err)

	exists, err = repo.Exists("game:req:req-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCacheRepo_JSONRoundTrip(t *testing.T) {
	repo, _ := newTestCacheRepo(t)

	type stats struct {
		GamesPlayed  int64   `json:"gamesPlayed"`
		AverageScore float64 `json:"averageScore"`
	}

	src := stats{GamesPlayed: 3, AverageScore: 116.67}
	require.NoError(t, repo.SetJSON("stats:player1", src, time.Minute))

	var dst stats
	require.NoError(t, repo.GetJSON("stats:player1", &dst))
	assert.Equal(t, src, dst)
}

func TestCacheRepo_GetJSON_MissingKey(t *testing.T) {
	repo, _ := newTestCacheRepo(t)

	var dst map[string]interface{}
	err := repo.GetJSON("stats:ghost", &dst)

	// redis.Nil транслируется в общую ошибку ErrNotFound
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "Отсутствующий ключ должен давать ErrNotFound")
}
