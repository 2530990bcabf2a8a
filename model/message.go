package model

// MessageType 推送消息类型
type MessageType string

const (
	MsgTypeNotification     MessageType = "notification"      // 通知弹窗
	MsgTypeArtistProgress   MessageType = "artist_progress"   // 歌手扫描进度
	MsgTypeDownloadProgress MessageType = "download_progress" // 下载进度
	MsgTypeTaskProgress     MessageType = "task_progress"     // 后台任务进度
	MsgTypeRefreshSongs     MessageType = "refresh_songs"     // 歌曲列表刷新
	MsgTypeRefreshList      MessageType = "refresh_list"      // 列表刷新
)

// Envelope is the type-tagged frame carried over the push channel.
// Classification reads only the tag; each handler re-decodes the full
// payload for its own shape.
type Envelope struct {
	Type MessageType `json:"type"`
}

// NotificationPayload 通知消息
type NotificationPayload struct {
	Type    MessageType `json:"type"`
	Level   string      `json:"level"`
	Message string      `json:"message"`
}

// Notification display levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// DownloadProgressPayload mirrors the server's download broadcast.
// Matching against the current song is by title+artist.
type DownloadProgressPayload struct {
	Type      MessageType `json:"type"`
	Title     string      `json:"title"`
	Artist    string      `json:"artist"`
	Source    MusicSource `json:"source,omitempty"`
	SongID    string      `json:"song_id,omitempty"`
	Message   string      `json:"message"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// TaskProgressPayload wraps the durable task feed; the record itself
// travels under "data".
type TaskProgressPayload struct {
	Type MessageType `json:"type"`
	Data TaskInfo    `json:"data"`
}
