package api

import (
	"context"
	"fmt"
	"net/url"

	"MeloFM/logger"
	"MeloFM/model"
)

// DownloadAudio 按元数据触发服务器端下载，返回落盘后的本地路径
func (c *Client) DownloadAudio(ctx context.Context, req model.DownloadRequest) (*model.DownloadResult, error) {
	logger.Info("download audio requested",
		logger.String("title", req.Title),
		logger.String("artist", req.Artist),
		logger.String("source", string(req.Source)))

	var result model.DownloadResult
	if err := c.postJSON(ctx, "/api/download_audio", req, &result); err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}
	return &result, nil
}

// GetLyrics fetches the raw timed lyric text for a song. An empty
// string with a nil error means the server has no lyrics for it.
func (c *Client) GetLyrics(ctx context.Context, title, artist, songID string) (string, error) {
	query := url.Values{}
	query.Set("title", title)
	query.Set("artist", artist)
	if songID != "" {
		query.Set("song_id", songID)
	}

	var result struct {
		Success bool   `json:"success"`
		Lyrics  string `json:"lyrics"`
	}
	if err := c.getJSON(ctx, "/api/metadata/lyrics", query, &result); err != nil {
		return "", fmt.Errorf("get lyrics: %w", err)
	}
	if !result.Success {
		return "", nil
	}
	return result.Lyrics, nil
}

// RecordPlay 上报播放历史
func (c *Client) RecordPlay(ctx context.Context, rec model.PlayRecord) error {
	if err := c.postJSON(ctx, "/api/history/record", rec, nil); err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}

// AudioURL returns the streaming URL for a downloaded file.
func (c *Client) AudioURL(filename string) string {
	return c.baseURL + "/api/audio/" + url.PathEscape(filename)
}

// CoverURL returns the cover art URL for a title/artist pair.
func (c *Client) CoverURL(title, artist string) string {
	query := url.Values{}
	query.Set("title", title)
	query.Set("artist", artist)
	return c.baseURL + "/api/metadata/cover?" + query.Encode()
}
