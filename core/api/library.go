package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"MeloFM/model"
)

// SongListResponse 歌曲列表分页响应
type SongListResponse struct {
	Items    []model.Song `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// ListSongs 获取歌曲列表
func (c *Client) ListSongs(ctx context.Context, page, pageSize int) (*SongListResponse, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	var result SongListResponse
	if err := c.getJSON(ctx, "/api/library/songs", query, &result); err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	return &result, nil
}

// ListArtists 获取监控歌手列表
func (c *Client) ListArtists(ctx context.Context) ([]model.Artist, error) {
	var result []model.Artist
	if err := c.getJSON(ctx, "/api/subscription/artists", nil, &result); err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}
	return result, nil
}
