package model

// MusicSource 歌曲来源平台
type MusicSource string

const (
	SourceNetease  MusicSource = "netease"
	SourceQQMusic  MusicSource = "qqmusic"
	SourceKuwo     MusicSource = "kuwo"
	SourceKugou    MusicSource = "kugou"
	SourceMigu     MusicSource = "migu"
	SourceLocal    MusicSource = "local"
	SourceDatabase MusicSource = "database"
)

// Quality labels inferred from the audio container when the catalog
// does not carry one.
const (
	QualitySQ = "SQ" // lossless: flac / wav / ape
	QualityHQ = "HQ" // mp3
)

// Song represents one catalog entry. Queue entries are shared by
// reference: the resolved LocalPath is written back onto the Song so a
// replay skips the download round-trip.
type Song struct {
	ID        int64       `json:"id"`
	Title     string      `json:"title"`
	Artist    string      `json:"artist"`
	Album     string      `json:"album"`
	Source    MusicSource `json:"source"`
	SourceID  string      `json:"sourceId"`
	Cover     string      `json:"cover,omitempty"`
	LocalPath string      `json:"localPath,omitempty"`
	Quality   string      `json:"quality,omitempty"`
	Duration  float64     `json:"duration,omitempty"` // seconds
}

// Artist represents a monitored artist in the library mirror.
type Artist struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Avatar    string      `json:"avatar,omitempty"`
	Source    MusicSource `json:"source"`
	SongCount int         `json:"songCount"`
}

// LyricLine 歌词行
type LyricLine struct {
	Time float64 `json:"time"` // seconds from track start
	Text string  `json:"text"`
}

// DownloadRequest is the payload for the on-demand audio fetch.
type DownloadRequest struct {
	Title  string      `json:"title"`
	Artist string      `json:"artist"`
	Album  string      `json:"album"`
	Source MusicSource `json:"source"`
	SongID string      `json:"song_id"`
	PicURL string      `json:"pic_url,omitempty"`
}

// DownloadResult is what the fetch collaborator returns. LocalPath may
// be empty even on a 200 response; callers must treat that as failure.
type DownloadResult struct {
	Success   bool   `json:"success"`
	LocalPath string `json:"localPath"`
	Message   string `json:"message,omitempty"`
}

// PlayRecord 播放历史上报
type PlayRecord struct {
	Title   string      `json:"title"`
	Artist  string      `json:"artist"`
	Album   string      `json:"album"`
	Source  MusicSource `json:"source"`
	MediaID string      `json:"media_id"`
	Cover   string      `json:"cover,omitempty"`
}
