package library

import (
	"context"
	"fmt"
	"sync"

	"MeloFM/cache"
	"MeloFM/core/api"
	"MeloFM/logger"
	"MeloFM/model"
)

const defaultPageSize = 200

// Catalog is the slice of the API client the store consumes.
type Catalog interface {
	ListSongs(ctx context.Context, page, pageSize int) (*api.SongListResponse, error)
	ListArtists(ctx context.Context) ([]model.Artist, error)
}

// Store mirrors the server-side catalog listing: songs and monitored
// artists. The push channel calls Refresh when the server announces a
// change, and SetArtistSongCount when an artist scan completes.
type Store struct {
	mu      sync.RWMutex
	catalog Catalog
	songs   []model.Song
	artists []model.Artist
	total   int
}

// NewStore 创建资料库镜像
func NewStore(catalog Catalog) *Store {
	return &Store{catalog: catalog}
}

// Refresh refetches the full listing from the server and replaces the
// mirror. The redis cache is repopulated as a side effect; cache
// failures never fail the refresh.
func (s *Store) Refresh(ctx context.Context) error {
	resp, err := s.catalog.ListSongs(ctx, 1, defaultPageSize)
	if err != nil {
		// 服务端已宣告数据变化，旧缓存视为过期
		cache.InvalidateLibrary(ctx)
		return fmt.Errorf("refresh songs: %w", err)
	}

	artists, err := s.catalog.ListArtists(ctx)
	if err != nil {
		cache.InvalidateLibrary(ctx)
		return fmt.Errorf("refresh artists: %w", err)
	}

	s.mu.Lock()
	s.songs = resp.Items
	s.total = resp.Total
	s.artists = artists
	s.mu.Unlock()

	if err := cache.StoreSongs(ctx, resp.Items); err != nil {
		logger.Warn("failed to cache songs", logger.ErrorField(err))
	}
	if err := cache.StoreArtists(ctx, artists); err != nil {
		logger.Warn("failed to cache artists", logger.ErrorField(err))
	}

	logger.Info("library refreshed",
		logger.Int("songs", len(resp.Items)),
		logger.Int("artists", len(artists)))
	return nil
}

// LoadCached primes the mirror from redis without hitting the server.
// A cache miss is not an error; the mirror just stays empty.
func (s *Store) LoadCached(ctx context.Context) {
	songs, err := cache.GetSongs(ctx)
	if err == nil {
		s.mu.Lock()
		s.songs = songs
		s.mu.Unlock()
	}

	artists, err := cache.GetArtists(ctx)
	if err == nil {
		s.mu.Lock()
		s.artists = artists
		s.mu.Unlock()
	}
}

// SetArtistSongCount updates the song count for an artist after a scan
// completes. Returns false when the artist is not in the mirror; the
// caller treats that as a skipped best-effort sync, not a failure.
func (s *Store) SetArtistSongCount(artistID string, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.artists {
		if s.artists[i].ID == artistID {
			s.artists[i].SongCount = count
			return true
		}
	}
	return false
}

// Songs returns a snapshot of the mirrored song listing.
func (s *Store) Songs() []model.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Song, len(s.songs))
	copy(out, s.songs)
	return out
}

// Artists returns a snapshot of the mirrored artist listing.
func (s *Store) Artists() []model.Artist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Artist, len(s.artists))
	copy(out, s.artists)
	return out
}

// Total 服务端歌曲总数
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
