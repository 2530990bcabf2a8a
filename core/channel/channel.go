package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"MeloFM/logger"
	"MeloFM/model"
)

const (
	// maxReconnectAttempts caps consecutive automatic reconnects; past
	// it the channel goes dormant until an explicit Connect call.
	maxReconnectAttempts = 5
	reconnectDelay       = 3 * time.Second
)

// Notifier is the severity-aware sink for server notifications.
type Notifier interface {
	Notify(level, message string, duration time.Duration)
}

// ProgressSink receives classified progress events (the registry).
type ProgressSink interface {
	UpdateArtist(p model.ArtistProgress)
	UpdateTask(t model.TaskInfo)
}

// PlayerSink receives download status for the track being resolved.
type PlayerSink interface {
	UpdateDownloadStatus(payload model.DownloadProgressPayload)
}

// Library is the listing collaborator: full refetch on server-side
// changes, plus the best-effort song count sync after an artist scan.
type Library interface {
	Refresh(ctx context.Context) error
	SetArtistSongCount(artistID string, count int) bool
}

// Channel owns the single push connection to the server. Incoming
// envelopes are classified by type tag and routed to the injected
// collaborators; message handling is serialized by the read loop.
type Channel struct {
	url      string
	notifier Notifier
	registry ProgressSink
	player   PlayerSink
	library  Library

	mu        sync.Mutex
	conn      *websocket.Conn
	dialing   bool
	connected bool
	attempts  int
	closed    bool

	retryDelay time.Duration
}

// New builds the channel. The websocket target is derived from the
// server base URL: http maps to ws, https to wss.
func New(serverURL, path string, notifier Notifier, registry ProgressSink, player PlayerSink, library Library) (*Channel, error) {
	target, err := deriveWSURL(serverURL, path)
	if err != nil {
		return nil, err
	}
	return &Channel{
		url:        target,
		notifier:   notifier,
		registry:   registry,
		player:     player,
		library:    library,
		retryDelay: reconnectDelay,
	}, nil
}

// deriveWSURL maps the server's HTTP origin onto the websocket scheme.
func deriveWSURL(serverURL, path string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = path
	u.RawQuery = ""
	return u.String(), nil
}

// Connect opens the push connection. Idempotent: a call while a
// connection or dial is already in progress is a no-op. An explicit
// call also wakes a dormant channel.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.conn != nil || c.dialing {
		c.mu.Unlock()
		return nil
	}
	c.dialing = true
	c.closed = false
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)

	c.mu.Lock()
	c.dialing = false
	if err != nil {
		c.mu.Unlock()
		logger.Warn("push channel dial failed", logger.String("url", c.url), logger.ErrorField(err))
		c.scheduleReconnect()
		return fmt.Errorf("dial push channel: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.mu.Unlock()

	logger.Info("push channel connected", logger.String("url", c.url))
	go c.readLoop(conn)
	return nil
}

// readLoop delivers messages in arrival order until the connection
// drops, then hands off to the reconnect policy.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("push channel closed", logger.ErrorField(err))
			break
		}
		c.dispatch(data)
	}
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	c.scheduleReconnect()
}

// scheduleReconnect arms one delayed reconnect unless the channel was
// closed deliberately or the attempt budget is spent. The counter is
// incremented before the retry dials, so five consecutive failures
// leave the channel dormant.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempts >= maxReconnectAttempts {
		c.mu.Unlock()
		logger.Warn("push channel dormant after repeated failures",
			logger.Int("attempts", maxReconnectAttempts))
		return
	}
	delay := c.retryDelay
	c.mu.Unlock()

	time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed || c.conn != nil || c.dialing {
			c.mu.Unlock()
			return
		}
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		logger.Info("push channel reconnecting", logger.Int("attempt", attempt))
		if err := c.Connect(); err != nil {
			logger.Warn("push channel reconnect failed", logger.ErrorField(err))
		}
	})
}

// dispatch classifies one envelope and routes it. A malformed or
// unknown message is logged and dropped; nothing here may take the
// channel down.
func (c *Channel) dispatch(data []byte) {
	var head model.Envelope
	if err := json.Unmarshal(data, &head); err != nil {
		logger.Warn("unparseable push message dropped", logger.ErrorField(err))
		return
	}

	switch head.Type {
	case model.MsgTypeNotification:
		var p model.NotificationPayload
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warn("malformed notification dropped", logger.ErrorField(err))
			return
		}
		level := normalizeLevel(p.Level)
		c.notifier.Notify(level, p.Message, displayDuration(level))

	case model.MsgTypeArtistProgress:
		var p model.ArtistProgress
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warn("malformed artist progress dropped", logger.ErrorField(err))
			return
		}
		c.registry.UpdateArtist(p)

		// Count sync rides along with the completion event when the
		// server includes it. Skipped silently for unknown artists.
		if p.State == model.ProgressComplete && p.SongCount != nil {
			if !c.library.SetArtistSongCount(p.ArtistID, *p.SongCount) {
				logger.Debug("song count sync skipped, artist not in mirror",
					logger.String("artistId", p.ArtistID))
			}
		}

	case model.MsgTypeDownloadProgress:
		var p model.DownloadProgressPayload
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warn("malformed download progress dropped", logger.ErrorField(err))
			return
		}
		c.player.UpdateDownloadStatus(p)

	case model.MsgTypeTaskProgress:
		var p model.TaskProgressPayload
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warn("malformed task progress dropped", logger.ErrorField(err))
			return
		}
		c.registry.UpdateTask(p.Data)

	case model.MsgTypeRefreshSongs, model.MsgTypeRefreshList:
		logger.Info("library refresh triggered by server", logger.String("type", string(head.Type)))
		if err := c.library.Refresh(context.Background()); err != nil {
			logger.Warn("server-triggered refresh failed", logger.ErrorField(err))
		}

	default:
		logger.Debug("unknown push message type dropped", logger.String("type", string(head.Type)))
	}
}

// IsConnected 当前连接状态
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ReconnectAttempts 当前累计重连次数
func (c *Channel) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Close tears the channel down for good; no reconnect follows.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// normalizeLevel folds unknown severities down to info.
func normalizeLevel(level string) string {
	switch level {
	case model.LevelSuccess, model.LevelWarning, model.LevelError:
		return level
	default:
		return model.LevelInfo
	}
}

// displayDuration matches the UI display time per severity.
func displayDuration(level string) time.Duration {
	switch level {
	case model.LevelError:
		return 5 * time.Second
	case model.LevelWarning:
		return 4 * time.Second
	default: // info, success
		return 3 * time.Second
	}
}
