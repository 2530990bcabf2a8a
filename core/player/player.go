package player

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"MeloFM/core/lyric"
	"MeloFM/logger"
	"MeloFM/model"
)

// Fetcher is the download/metadata collaborator (implemented by
// api.Client). Resolution turns a catalog entry into a playable URL
// through it.
type Fetcher interface {
	DownloadAudio(ctx context.Context, req model.DownloadRequest) (*model.DownloadResult, error)
	GetLyrics(ctx context.Context, title, artist, songID string) (string, error)
	RecordPlay(ctx context.Context, rec model.PlayRecord) error
	AudioURL(filename string) string
}

// AudioSink is the host's media playback facility. The orchestrator
// only points it at a URL and stops it; position/duration flow back in
// through UpdateTime/SetDuration.
type AudioSink interface {
	Play(url string)
	Stop()
}

// Player drives what is currently playing: resolving a song to a local
// audio URL, lyric synchronization and queue navigation. All state is
// behind one mutex; overlapping async resolutions are disambiguated by
// a per-resolution token, never by aborting the older request.
type Player struct {
	fetcher Fetcher
	sink    AudioSink // optional

	mu              sync.Mutex
	current         *model.Song
	queue           []*model.Song
	state           State
	failCause       string
	position        float64
	duration        float64
	volume          int
	muted           bool
	audioURL        string
	lyrics          []model.LyricLine
	lyricIndex      int
	downloadMessage string
	token           string // current resolution token
	onChange        func(Snapshot)
}

// NewPlayer 创建播放编排器
func NewPlayer(fetcher Fetcher, sink AudioSink, defaultVolume int) *Player {
	if defaultVolume < 0 || defaultVolume > 100 {
		defaultVolume = 80
	}
	return &Player{
		fetcher:    fetcher,
		sink:       sink,
		state:      StateIdle,
		volume:     defaultVolume,
		lyricIndex: -1,
	}
}

// SetOnChange registers a state observer. It is invoked outside the
// player lock, after every transition.
func (p *Player) SetOnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// PlaySong runs the full resolution pipeline for a song. The previous
// track's output is stopped and the audio URL cleared before anything
// else happens; observers see that cleared snapshot before the new
// track is adopted. Resolution failures land in StateFailed and are
// also returned.
func (p *Player) PlaySong(ctx context.Context, song *model.Song) error {
	if song == nil {
		return errors.New("play: nil song")
	}

	// Stop audible output first. A download can take seconds; the old
	// track must not keep playing underneath it.
	p.mu.Lock()
	if p.sink != nil {
		p.sink.Stop()
	}
	p.audioURL = ""
	p.state = StateResolving
	p.failCause = ""
	tok := uuid.NewString()
	p.token = tok
	p.mu.Unlock()
	p.notify()

	p.mu.Lock()
	if p.token != tok {
		// A reentrant PlaySong fired from the cleared-state notification
		// above already owns the session; adopting our track now would
		// split current and audioURL across two resolutions.
		p.mu.Unlock()
		logger.Debug("superseded before track adoption",
			logger.String("title", song.Title),
			logger.String("artist", song.Artist))
		return nil
	}
	p.current = song
	p.position = 0
	p.duration = 0
	p.lyrics = nil
	p.lyricIndex = -1
	p.downloadMessage = ""
	p.state = StateFetching
	p.mu.Unlock()
	p.notify()

	audioURL, err := p.resolveAudioURL(ctx, song)
	if err != nil {
		return p.fail(tok, err)
	}
	if audioURL == "" {
		return p.fail(tok, errors.New("resolution produced no audio location"))
	}

	p.mu.Lock()
	if p.token != tok {
		// A newer PlaySong (or ClearPlayer) superseded this resolution
		// while the download was in flight. Drop silently.
		p.mu.Unlock()
		logger.Debug("stale resolution dropped",
			logger.String("title", song.Title),
			logger.String("artist", song.Artist))
		return nil
	}
	inferQuality(song)
	p.audioURL = audioURL
	p.state = StateReady
	sink := p.sink
	p.mu.Unlock()
	p.notify()

	// 歌词异步获取，失败或超时都不能阻塞播放
	p.spawn("fetch lyrics", func() error {
		return p.fetchLyrics(song, tok)
	})

	p.mu.Lock()
	if p.token != tok {
		p.mu.Unlock()
		return nil
	}
	p.state = StatePlaying
	p.mu.Unlock()
	if sink != nil {
		sink.Play(audioURL)
	}
	p.notify()

	// 上报播放记录（后台执行，失败只记日志）
	rec := model.PlayRecord{
		Title:   song.Title,
		Artist:  song.Artist,
		Album:   song.Album,
		Source:  song.Source,
		MediaID: song.SourceID,
		Cover:   song.Cover,
	}
	if rec.MediaID == "" {
		rec.MediaID = fmt.Sprintf("%d", song.ID)
	}
	p.spawn("record play", func() error {
		return p.fetcher.RecordPlay(context.Background(), rec)
	})

	return nil
}

// resolveAudioURL turns the song into a streaming URL: a known local
// path short-circuits the download entirely; otherwise the server
// fetches the audio and reports where it landed. The resolved path is
// written back onto the song so a replay skips this round-trip.
func (p *Player) resolveAudioURL(ctx context.Context, song *model.Song) (string, error) {
	if song.LocalPath != "" {
		filename := lastPathSegment(song.LocalPath)
		if filename == "" {
			return "", fmt.Errorf("invalid local path %q", song.LocalPath)
		}
		logger.Info("playing local file", logger.String("filename", filename))
		return p.fetcher.AudioURL(filename), nil
	}

	result, err := p.fetcher.DownloadAudio(ctx, model.DownloadRequest{
		Title:  song.Title,
		Artist: song.Artist,
		Album:  song.Album,
		Source: song.Source,
		SongID: song.SourceID,
		PicURL: song.Cover,
	})
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	if result.LocalPath == "" {
		return "", errors.New("download returned no usable path")
	}

	filename := lastPathSegment(result.LocalPath)
	if filename == "" {
		return "", fmt.Errorf("invalid download path %q", result.LocalPath)
	}
	song.LocalPath = result.LocalPath
	return p.fetcher.AudioURL(filename), nil
}

// fail moves the machine to StateFailed unless a newer resolution has
// already taken over, in which case the failure belongs to a track the
// user navigated away from and is only logged.
func (p *Player) fail(tok string, err error) error {
	p.mu.Lock()
	if p.token != tok {
		p.mu.Unlock()
		logger.Debug("stale resolution failure dropped", logger.ErrorField(err))
		return nil
	}
	p.state = StateFailed
	p.failCause = err.Error()
	p.current = nil
	p.audioURL = ""
	p.mu.Unlock()
	p.notify()

	logger.Error("playback failed", logger.ErrorField(err))
	return err
}

// fetchLyrics resolves and parses the timed lyrics for a song. On any
// failure the line list is cleared rather than left over from the
// previous track.
func (p *Player) fetchLyrics(song *model.Song, tok string) error {
	raw, err := p.fetcher.GetLyrics(context.Background(), song.Title, song.Artist, fmt.Sprintf("%d", song.ID))

	var lines []model.LyricLine
	if err == nil && raw != "" {
		lines = lyric.Parse(raw)
	}

	p.mu.Lock()
	if p.token != tok {
		p.mu.Unlock()
		return nil
	}
	p.lyrics = lines
	p.lyricIndex = activeLyricIndex(lines, p.position)
	p.mu.Unlock()
	p.notify()

	if err != nil {
		return fmt.Errorf("fetch lyrics for %q: %w", song.Title, err)
	}
	return nil
}

// UpdateDownloadStatus consumes a download_progress push event. Only
// the song currently being resolved is interesting; progress for
// anything else is dropped.
func (p *Player) UpdateDownloadStatus(payload model.DownloadProgressPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.current.Title == payload.Title && p.current.Artist == payload.Artist {
		p.downloadMessage = payload.Message
	}
}

// PlayNext plays the song after the current one in the queue. At the
// tail this is a no-op: no wraparound.
func (p *Player) PlayNext(ctx context.Context) error {
	next := p.neighbor(1)
	if next == nil {
		return nil
	}
	return p.PlaySong(ctx, next)
}

// PlayPrev plays the song before the current one. No wraparound.
func (p *Player) PlayPrev(ctx context.Context) error {
	prev := p.neighbor(-1)
	if prev == nil {
		return nil
	}
	return p.PlaySong(ctx, prev)
}

// neighbor locates the current song by id within the queue and returns
// the entry at offset, or nil at either boundary.
func (p *Player) neighbor(offset int) *model.Song {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}
	for i, s := range p.queue {
		if s.ID == p.current.ID {
			j := i + offset
			if j < 0 || j >= len(p.queue) {
				return nil
			}
			return p.queue[j]
		}
	}
	return nil
}

// HasNext reports whether PlayNext would change anything.
func (p *Player) HasNext() bool {
	return p.neighbor(1) != nil
}

// HasPrev reports whether PlayPrev would change anything.
func (p *Player) HasPrev() bool {
	return p.neighbor(-1) != nil
}

// TogglePlay 播放/暂停切换
func (p *Player) TogglePlay() {
	p.mu.Lock()
	switch p.state {
	case StatePlaying:
		p.state = StatePaused
	case StatePaused, StateReady:
		p.state = StatePlaying
	default:
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.notify()
}

// SetVolume sets the stored volume. Volume zero implies muted; raising
// it again does not unmute.
func (p *Player) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}

	p.mu.Lock()
	p.volume = v
	if v == 0 {
		p.muted = true
	}
	p.mu.Unlock()
	p.notify()
}

// ToggleMute flips mute without touching the stored volume.
func (p *Player) ToggleMute() {
	p.mu.Lock()
	p.muted = !p.muted
	p.mu.Unlock()
	p.notify()
}

// UpdateTime is fed by the host at playback cadence. It keeps the
// active lyric index on the last line at or before the position.
func (p *Player) UpdateTime(t float64) {
	p.mu.Lock()
	p.position = t
	p.lyricIndex = activeLyricIndex(p.lyrics, t)
	p.mu.Unlock()
}

// SetDuration 设置当前曲目时长
func (p *Player) SetDuration(d float64) {
	p.mu.Lock()
	p.duration = d
	p.mu.Unlock()
}

// Seek jumps to an absolute position in seconds.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	if p.duration > 0 {
		p.position = t
		p.lyricIndex = activeLyricIndex(p.lyrics, t)
	}
	p.mu.Unlock()
}

// SeekPercent jumps to a position expressed as 0-100.
func (p *Player) SeekPercent(percent float64) {
	p.mu.Lock()
	if p.duration > 0 {
		p.position = percent / 100 * p.duration
		p.lyricIndex = activeLyricIndex(p.lyrics, p.position)
	}
	p.mu.Unlock()
}

// SetPlaylist replaces the queue. Entries are shared references; the
// song id is the join key for navigation.
func (p *Player) SetPlaylist(songs []*model.Song) {
	p.mu.Lock()
	p.queue = songs
	p.mu.Unlock()
}

// ClearPlayer hard-resets the session from any state. The fresh token
// also invalidates every in-flight resolution.
func (p *Player) ClearPlayer() {
	p.mu.Lock()
	if p.sink != nil {
		p.sink.Stop()
	}
	p.current = nil
	p.audioURL = ""
	p.state = StateIdle
	p.failCause = ""
	p.position = 0
	p.duration = 0
	p.lyrics = nil
	p.lyricIndex = -1
	p.downloadMessage = ""
	p.token = uuid.NewString()
	p.mu.Unlock()
	p.notify()
}

// Snapshot returns a consistent copy of the session.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	lines := make([]model.LyricLine, len(p.lyrics))
	copy(lines, p.lyrics)

	return Snapshot{
		Current:         p.current,
		State:           p.state,
		Position:        p.position,
		Duration:        p.duration,
		Volume:          p.volume,
		Muted:           p.muted,
		AudioURL:        p.audioURL,
		Lyrics:          lines,
		LyricIndex:      p.lyricIndex,
		DownloadMessage: p.downloadMessage,
		FailCause:       p.failCause,
	}
}

// State 当前状态
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// notify invokes the observer outside the lock.
func (p *Player) notify() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn(p.Snapshot())
	}
}

// spawn runs a best-effort side effect in a detached goroutine. The
// caller never waits for it; failures are logged and dropped.
func (p *Player) spawn(name string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			logger.Warn("background task failed",
				logger.String("task", name),
				logger.ErrorField(err))
		}
	}()
}

// activeLyricIndex returns the greatest index whose time is at or
// before t, or -1. Scanned backward: at UI cadence the hit is almost
// always near the end of the played range.
func activeLyricIndex(lines []model.LyricLine, t float64) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if t >= lines[i].Time {
			return i
		}
	}
	return -1
}

// inferQuality fills in a quality label from the file extension when
// the catalog has none. Best effort: unknown extensions leave it unset.
func inferQuality(song *model.Song) {
	if song.Quality != "" || song.LocalPath == "" {
		return
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(song.LocalPath), "."))
	switch ext {
	case "flac", "wav", "ape":
		song.Quality = model.QualitySQ
	case "mp3":
		song.Quality = model.QualityHQ
	}
}

// lastPathSegment extracts the filename from a path that may use
// either slash flavor; downloads can land on a Windows host.
func lastPathSegment(path string) string {
	idx := strings.LastIndexAny(path, `/\`)
	return path[idx+1:]
}
