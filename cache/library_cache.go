package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MeloFM/model"

	"github.com/redis/go-redis/v9"
)

const (
	songsKey   = "library:songs"
	artistsKey = "library:artists"

	// 列表缓存过期时间。推送通道会在服务端数据变化时触发刷新，
	// 这里的 TTL 只是兜底。
	libraryTTL = 10 * time.Minute
)

// ErrCacheMiss 缓存未命中或缓存不可用
var ErrCacheMiss = errors.New("library cache miss")

// StoreSongs 缓存歌曲列表
func StoreSongs(ctx context.Context, songs []model.Song) error {
	if RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(songs)
	if err != nil {
		return fmt.Errorf("failed to marshal songs: %w", err)
	}
	if err := RedisClient.Set(ctx, songsKey, data, libraryTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache songs: %w", err)
	}
	return nil
}

// GetSongs 读取缓存的歌曲列表
func GetSongs(ctx context.Context) ([]model.Song, error) {
	if RedisClient == nil {
		return nil, ErrCacheMiss
	}

	data, err := RedisClient.Get(ctx, songsKey).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached songs: %w", err)
	}

	var songs []model.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached songs: %w", err)
	}
	return songs, nil
}

// StoreArtists 缓存歌手列表
func StoreArtists(ctx context.Context, artists []model.Artist) error {
	if RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(artists)
	if err != nil {
		return fmt.Errorf("failed to marshal artists: %w", err)
	}
	if err := RedisClient.Set(ctx, artistsKey, data, libraryTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache artists: %w", err)
	}
	return nil
}

// GetArtists 读取缓存的歌手列表
func GetArtists(ctx context.Context) ([]model.Artist, error) {
	if RedisClient == nil {
		return nil, ErrCacheMiss
	}

	data, err := RedisClient.Get(ctx, artistsKey).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached artists: %w", err)
	}

	var artists []model.Artist
	if err := json.Unmarshal(data, &artists); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached artists: %w", err)
	}
	return artists, nil
}

// InvalidateLibrary 清除列表缓存（收到 refresh_songs / refresh_list 时调用）
func InvalidateLibrary(ctx context.Context) {
	if RedisClient == nil {
		return
	}
	RedisClient.Del(ctx, songsKey, artistsKey)
}
