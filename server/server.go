package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"MeloFM/config"
	"MeloFM/logger"
	"MeloFM/model"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DevServer is a stand-in catalog backend for developing the engine
// without the real server: it serves the playback/task endpoints the
// engine consumes and pushes envelopes over /ws/progress.
type DevServer struct {
	cfg *config.Config
	hub *Hub
}

// NewDevServer 创建模拟后端
func NewDevServer(cfg *config.Config) *DevServer {
	return &DevServer{cfg: cfg, hub: NewHub()}
}

// Hub exposes the push hub so callers can inject their own envelopes.
func (s *DevServer) Hub() *Hub {
	return s.hub
}

// Router builds the HTTP surface the engine talks to.
func (s *DevServer) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws/progress", s.handleWS)
	router.HandleFunc("/api/download_audio", s.handleDownloadAudio).Methods(http.MethodPost)
	router.HandleFunc("/api/metadata/lyrics", s.handleLyrics).Methods(http.MethodGet)
	router.HandleFunc("/api/metadata/cover", s.handleCover).Methods(http.MethodGet)
	router.HandleFunc("/api/history/record", s.handleRecordPlay).Methods(http.MethodPost)
	router.HandleFunc("/api/audio/{filename}", s.handleAudio).Methods(http.MethodGet)
	router.HandleFunc("/api/tasks/{task_id}/{action}", s.handleTaskControl).Methods(http.MethodPost)
	router.HandleFunc("/api/library/songs", s.handleSongs).Methods(http.MethodGet)
	router.HandleFunc("/api/subscription/artists", s.handleArtists).Methods(http.MethodGet)

	return router
}

// Start runs the hub, the music directory watcher and the HTTP server.
// Blocks until the server exits.
func (s *DevServer) Start(addr string) error {
	go s.hub.Run()
	defer s.hub.Stop()

	if err := os.MkdirAll(s.cfg.MusicDir, 0755); err != nil {
		return fmt.Errorf("create music dir: %w", err)
	}
	stopWatch, err := s.watchMusicDir()
	if err != nil {
		logger.Warn("music dir watcher unavailable", logger.ErrorField(err))
	} else {
		defer stopWatch()
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Info("dev backend listening", logger.String("addr", addr))
	return srv.ListenAndServe()
}

func (s *DevServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	s.hub.Register(conn)

	// The engine never sends anything; the read loop only detects the
	// disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Unregister(conn)
				return
			}
		}
	}()
}

// handleDownloadAudio simulates the on-demand fetch: progress pushes
// over the channel, a placeholder file on disk, the local path in the
// response.
func (s *DevServer) handleDownloadAudio(w http.ResponseWriter, r *http.Request) {
	var req model.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.pushDownloadProgress(req, "⏳ 正在启动下载任务...")

	filename := fmt.Sprintf("%s - %s.mp3", req.Artist, req.Title)
	localPath := filepath.Join(s.cfg.MusicDir, filename)
	if err := os.WriteFile(localPath, []byte{}, 0644); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.pushDownloadProgress(req, "✅ 下载完成！")

	writeJSON(w, model.DownloadResult{Success: true, LocalPath: localPath})
}

func (s *DevServer) pushDownloadProgress(req model.DownloadRequest, msg string) {
	s.hub.Broadcast(model.DownloadProgressPayload{
		Type:      model.MsgTypeDownloadProgress,
		Title:     req.Title,
		Artist:    req.Artist,
		Source:    req.Source,
		SongID:    req.SongID,
		Message:   msg,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *DevServer) handleLyrics(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	writeJSON(w, map[string]any{
		"success": true,
		"lyrics":  fmt.Sprintf("[00:00.00]%s\n[00:05.00]（模拟歌词）\n", title),
	})
}

// handleCover 返回占位封面图
func (s *DevServer) handleCover(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	w.Header().Set("Content-Type", "image/svg+xml")
	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="300" height="300"><rect width="300" height="300" fill="#2b2b2b"/><text x="150" y="155" fill="#ddd" font-size="20" text-anchor="middle">%s</text></svg>`,
		html.EscapeString(title))
}

func (s *DevServer) handleRecordPlay(w http.ResponseWriter, r *http.Request) {
	var rec model.PlayRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.Info("play recorded",
		logger.String("title", rec.Title),
		logger.String("artist", rec.Artist))
	writeJSON(w, map[string]any{"success": true})
}

func (s *DevServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	path := filepath.Join(s.cfg.MusicDir, filepath.Base(filename))
	http.ServeFile(w, r, path)
}

// handleTaskControl acknowledges pause/resume/cancel and pushes the
// resulting durable task state, mirroring the real server's split
// between the HTTP ack and the task_progress event.
func (s *DevServer) handleTaskControl(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	taskID := vars["task_id"]
	action := vars["action"]

	var state model.TaskState
	switch action {
	case "pause":
		state = model.TaskPaused
	case "resume":
		state = model.TaskRunning
	case "cancel":
		state = model.TaskCancelling
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}

	s.hub.Broadcast(model.TaskProgressPayload{
		Type: model.MsgTypeTaskProgress,
		Data: model.TaskInfo{
			TaskID:   taskID,
			TaskType: "download",
			State:    state,
			Message:  fmt.Sprintf("task %s", action),
		},
	})

	writeJSON(w, model.TaskControlResponse{Status: "ok", TaskID: taskID})
}

// handleSongs lists the music directory as the catalog, parsing
// "Artist - Title.ext" filenames.
func (s *DevServer) handleSongs(w http.ResponseWriter, r *http.Request) {
	songs := s.scanSongs()
	writeJSON(w, map[string]any{
		"items":     songs,
		"total":     len(songs),
		"page":      1,
		"page_size": len(songs),
	})
}

func (s *DevServer) handleArtists(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]int)
	for _, song := range s.scanSongs() {
		counts[song.Artist]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	artists := make([]model.Artist, 0, len(names))
	for _, name := range names {
		artists = append(artists, model.Artist{
			ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String(),
			Name:      name,
			Source:    model.SourceLocal,
			SongCount: counts[name],
		})
	}
	writeJSON(w, artists)
}

func (s *DevServer) scanSongs() []model.Song {
	entries, err := os.ReadDir(s.cfg.MusicDir)
	if err != nil {
		logger.Warn("music dir scan failed", logger.ErrorField(err))
		return nil
	}

	var songs []model.Song
	var id int64
	for _, entry := range entries {
		if entry.IsDir() || !isAudioFile(entry.Name()) {
			continue
		}
		id++
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		artist, title := "Unknown", base
		if i := strings.Index(base, " - "); i > 0 {
			artist, title = base[:i], base[i+3:]
		}
		songs = append(songs, model.Song{
			ID:        id,
			Title:     title,
			Artist:    artist,
			Source:    model.SourceLocal,
			LocalPath: filepath.Join(s.cfg.MusicDir, entry.Name()),
		})
	}
	return songs
}

func isAudioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".flac", ".wav", ".ape", ".m4a", ".ogg":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("response encode failed", logger.ErrorField(err))
	}
}
