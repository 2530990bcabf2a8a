package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MeloFM/model"
)

type fakeFetcher struct {
	mu             sync.Mutex
	downloadCalls  []model.DownloadRequest
	downloadResult *model.DownloadResult
	downloadErr    error
	downloadGate   chan struct{} // when set, DownloadAudio blocks until closed
	lyrics         string
	lyricsErr      error
	recorded       []model.PlayRecord
}

func (f *fakeFetcher) DownloadAudio(ctx context.Context, req model.DownloadRequest) (*model.DownloadResult, error) {
	f.mu.Lock()
	f.downloadCalls = append(f.downloadCalls, req)
	gate := f.downloadGate
	result := f.downloadResult
	err := f.downloadErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fakeFetcher) GetLyrics(ctx context.Context, title, artist, songID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lyrics, f.lyricsErr
}

func (f *fakeFetcher) RecordPlay(ctx context.Context, rec model.PlayRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, rec)
	return nil
}

func (f *fakeFetcher) AudioURL(filename string) string {
	return "http://test/api/audio/" + filename
}

func (f *fakeFetcher) downloads() []model.DownloadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.DownloadRequest, len(f.downloadCalls))
	copy(out, f.downloadCalls)
	return out
}

func (f *fakeFetcher) records() []model.PlayRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.PlayRecord, len(f.recorded))
	copy(out, f.recorded)
	return out
}

type fakeSink struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeSink) Play(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "play:"+url)
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "stop")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayLocalPathSkipsDownload(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPlayer(fetcher, &fakeSink{}, 80)

	song := &model.Song{ID: 1, Title: "T", Artist: "A", LocalPath: "/music/track.flac"}
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}

	snap := p.Snapshot()
	if snap.State != StatePlaying {
		t.Errorf("state = %s, want playing", snap.State)
	}
	if snap.AudioURL != "http://test/api/audio/track.flac" {
		t.Errorf("audioURL = %q", snap.AudioURL)
	}
	if len(fetcher.downloads()) != 0 {
		t.Error("local path must skip the download request")
	}
	if song.Quality != model.QualitySQ {
		t.Errorf("quality = %q, want SQ for flac", song.Quality)
	}
}

func TestPlayDownloadAdoptsAndPersistsPath(t *testing.T) {
	fetcher := &fakeFetcher{
		downloadResult: &model.DownloadResult{Success: true, LocalPath: `C:\music\cache\track.mp3`},
	}
	p := NewPlayer(fetcher, nil, 80)

	song := &model.Song{ID: 2, Title: "T", Artist: "A", Source: model.SourceNetease, SourceID: "n42"}
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}

	snap := p.Snapshot()
	if snap.AudioURL != "http://test/api/audio/track.mp3" {
		t.Errorf("audioURL = %q, backslash path not split", snap.AudioURL)
	}
	if song.LocalPath == "" {
		t.Error("resolved path not persisted onto the song")
	}
	if song.Quality != model.QualityHQ {
		t.Errorf("quality = %q, want HQ for mp3", song.Quality)
	}

	calls := fetcher.downloads()
	if len(calls) != 1 || calls[0].SongID != "n42" {
		t.Errorf("download calls = %+v", calls)
	}

	// A replay uses the persisted path and skips the second download.
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(fetcher.downloads()) != 1 {
		t.Error("replay must not download again")
	}
}

func TestPlayDownloadWithoutPathFails(t *testing.T) {
	fetcher := &fakeFetcher{downloadResult: &model.DownloadResult{Success: true}}
	p := NewPlayer(fetcher, nil, 80)

	song := &model.Song{ID: 3, Title: "T", Artist: "A"}
	if err := p.PlaySong(context.Background(), song); err == nil {
		t.Fatal("expected error for empty local path")
	}

	snap := p.Snapshot()
	if snap.State != StateFailed {
		t.Errorf("state = %s, want failed", snap.State)
	}
	if snap.Current != nil {
		t.Error("failed resolution must clear the current song")
	}
	if snap.FailCause == "" {
		t.Error("failure cause not surfaced")
	}
}

func TestPlayDownloadErrorFails(t *testing.T) {
	fetcher := &fakeFetcher{downloadErr: errors.New("network down")}
	p := NewPlayer(fetcher, nil, 80)

	if err := p.PlaySong(context.Background(), &model.Song{ID: 4, Title: "T"}); err == nil {
		t.Fatal("expected error")
	}
	if p.State() != StateFailed {
		t.Errorf("state = %s, want failed", p.State())
	}
}

func TestStaleResolutionDropped(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{
		downloadGate:   gate,
		downloadResult: &model.DownloadResult{Success: true, LocalPath: "/dl/slow.mp3"},
	}
	p := NewPlayer(fetcher, nil, 80)

	slow := &model.Song{ID: 10, Title: "Slow", Artist: "A"}
	done := make(chan error, 1)
	go func() { done <- p.PlaySong(context.Background(), slow) }()

	waitFor(t, func() bool { return len(fetcher.downloads()) == 1 }, "first download never started")

	// User switches tracks while the first download is in flight.
	fast := &model.Song{ID: 11, Title: "Fast", Artist: "A", LocalPath: "/music/fast.flac"}
	if err := p.PlaySong(context.Background(), fast); err != nil {
		t.Fatalf("second PlaySong: %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("stale resolution must drop silently, got %v", err)
	}

	snap := p.Snapshot()
	if snap.Current == nil || snap.Current.ID != fast.ID {
		t.Fatalf("current = %+v, want the fast track", snap.Current)
	}
	if snap.AudioURL != "http://test/api/audio/fast.flac" {
		t.Errorf("stale response overwrote audioURL: %q", snap.AudioURL)
	}
	if snap.State != StatePlaying {
		t.Errorf("state = %s, want playing", snap.State)
	}
}

func TestReentrantPlayFromObserverWinsSession(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPlayer(fetcher, nil, 80)

	a := &model.Song{ID: 1, Title: "A", Artist: "X", LocalPath: "/m/a.mp3"}
	b := &model.Song{ID: 2, Title: "B", Artist: "X", LocalPath: "/m/b.mp3"}

	// A track switch issued from inside the cleared-state notification:
	// the second resolution must own the session outright, and the first
	// must not write current or state after being superseded.
	var once sync.Once
	var innerErr error
	p.SetOnChange(func(s Snapshot) {
		if s.State == StateResolving {
			once.Do(func() {
				innerErr = p.PlaySong(context.Background(), b)
			})
		}
	})

	if err := p.PlaySong(context.Background(), a); err != nil {
		t.Fatalf("PlaySong A: %v", err)
	}
	if innerErr != nil {
		t.Fatalf("nested PlaySong B: %v", innerErr)
	}

	snap := p.Snapshot()
	if snap.Current == nil || snap.Current.ID != b.ID {
		t.Fatalf("current = %+v, want song B", snap.Current)
	}
	if snap.AudioURL != "http://test/api/audio/b.mp3" {
		t.Errorf("audioURL = %q, mismatched with current track", snap.AudioURL)
	}
	if snap.State != StatePlaying {
		t.Errorf("state = %s, want playing", snap.State)
	}
}

func TestObserverSeesClearedStateBeforeNewTrack(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPlayer(fetcher, nil, 80)

	var mu sync.Mutex
	var states []State
	var urls []string
	p.SetOnChange(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		urls = append(urls, s.AudioURL)
		mu.Unlock()
	})

	song := &model.Song{ID: 5, Title: "T", Artist: "A", LocalPath: "/music/t.mp3"}
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 {
		t.Fatal("observer never invoked")
	}
	if states[0] != StateResolving || urls[0] != "" {
		t.Errorf("first observation = %s/%q, want resolving with cleared URL", states[0], urls[0])
	}
}

func TestRecordPlayFired(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPlayer(fetcher, nil, 80)

	song := &model.Song{ID: 6, Title: "T", Artist: "A", Album: "L", Source: model.SourceLocal, LocalPath: "/m/t.mp3"}
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}

	waitFor(t, func() bool { return len(fetcher.records()) == 1 }, "play never recorded")
	rec := fetcher.records()[0]
	if rec.Title != "T" || rec.MediaID != "6" {
		t.Errorf("record = %+v", rec)
	}
}

func TestLyricsFetchedAsync(t *testing.T) {
	fetcher := &fakeFetcher{lyrics: "[00:01.00]line one\n[00:02.00]line two"}
	p := NewPlayer(fetcher, nil, 80)

	song := &model.Song{ID: 7, Title: "T", Artist: "A", LocalPath: "/m/t.mp3"}
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}

	waitFor(t, func() bool { return len(p.Snapshot().Lyrics) == 2 }, "lyrics never arrived")
}

func TestLyricFailureClearsLines(t *testing.T) {
	fetcher := &fakeFetcher{lyrics: "[00:01.00]old song line"}
	p := NewPlayer(fetcher, nil, 80)

	first := &model.Song{ID: 8, Title: "First", Artist: "A", LocalPath: "/m/a.mp3"}
	if err := p.PlaySong(context.Background(), first); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}
	waitFor(t, func() bool { return len(p.Snapshot().Lyrics) == 1 }, "first lyrics never arrived")

	fetcher.mu.Lock()
	fetcher.lyricsErr = errors.New("metadata service down")
	fetcher.mu.Unlock()

	second := &model.Song{ID: 9, Title: "Second", Artist: "A", LocalPath: "/m/b.mp3"}
	if err := p.PlaySong(context.Background(), second); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}

	// The previous track's lines must not survive into the new one.
	waitFor(t, func() bool { return len(p.Snapshot().Lyrics) == 0 }, "stale lyrics retained")
	if p.State() != StatePlaying {
		t.Errorf("lyric failure must not affect playback, state = %s", p.State())
	}
}

func TestQueueNavigation(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPlayer(fetcher, nil, 80)

	s1 := &model.Song{ID: 1, Title: "one", LocalPath: "/m/1.mp3"}
	s2 := &model.Song{ID: 2, Title: "two", LocalPath: "/m/2.mp3"}
	s3 := &model.Song{ID: 3, Title: "three", LocalPath: "/m/3.mp3"}
	p.SetPlaylist([]*model.Song{s1, s2, s3})

	ctx := context.Background()

	// No current track: navigation is a no-op.
	if err := p.PlayNext(ctx); err != nil {
		t.Fatalf("PlayNext: %v", err)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %s, want idle", p.State())
	}

	if err := p.PlaySong(ctx, s1); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}
	if p.HasPrev() {
		t.Error("HasPrev at head must be false")
	}
	if err := p.PlayPrev(ctx); err != nil {
		t.Fatalf("PlayPrev: %v", err)
	}
	if cur := p.Snapshot().Current; cur == nil || cur.ID != 1 {
		t.Errorf("PlayPrev at head changed state: %+v", cur)
	}

	if err := p.PlayNext(ctx); err != nil {
		t.Fatalf("PlayNext: %v", err)
	}
	if cur := p.Snapshot().Current; cur == nil || cur.ID != 2 {
		t.Errorf("current = %+v, want song 2", cur)
	}

	if err := p.PlaySong(ctx, s3); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}
	if p.HasNext() {
		t.Error("HasNext at tail must be false")
	}
	if err := p.PlayNext(ctx); err != nil {
		t.Fatalf("PlayNext: %v", err)
	}
	if cur := p.Snapshot().Current; cur == nil || cur.ID != 3 {
		t.Errorf("PlayNext at tail changed state: %+v", cur)
	}
}

func TestVolumeZeroImpliesMuted(t *testing.T) {
	p := NewPlayer(&fakeFetcher{}, nil, 80)

	p.SetVolume(0)
	snap := p.Snapshot()
	if !snap.Muted || snap.Volume != 0 {
		t.Errorf("after SetVolume(0): volume=%d muted=%v", snap.Volume, snap.Muted)
	}

	// Raising the volume again does not implicitly unmute.
	p.SetVolume(50)
	snap = p.Snapshot()
	if !snap.Muted {
		t.Error("SetVolume(50) must not unmute")
	}
	if snap.Volume != 50 {
		t.Errorf("volume = %d, want 50", snap.Volume)
	}

	p.ToggleMute()
	if p.Snapshot().Muted {
		t.Error("ToggleMute must unmute")
	}
}

func TestUpdateTimeLyricIndex(t *testing.T) {
	p := NewPlayer(&fakeFetcher{}, nil, 80)
	p.mu.Lock()
	p.lyrics = []model.LyricLine{{Time: 0.25, Text: "World"}, {Time: 1.5, Text: "Hello"}, {Time: 10, Text: "end"}}
	p.mu.Unlock()

	cases := []struct {
		t    float64
		want int
	}{
		{0, -1},
		{0.1, -1},
		{0.25, 0},
		{1.49, 0},
		{1.5, 1},
		{5, 1},
		{10, 2},
		{9999, 2},
		{0.1, -1}, // seeking backward re-derives the index
	}
	for _, c := range cases {
		p.UpdateTime(c.t)
		if got := p.Snapshot().LyricIndex; got != c.want {
			t.Errorf("UpdateTime(%v): index = %d, want %d", c.t, got, c.want)
		}
	}
}

func TestSeekRequiresDuration(t *testing.T) {
	p := NewPlayer(&fakeFetcher{}, nil, 80)

	p.Seek(42)
	if p.Snapshot().Position != 0 {
		t.Error("Seek before duration known must be a no-op")
	}

	p.SetDuration(180)
	p.Seek(42)
	if p.Snapshot().Position != 42 {
		t.Errorf("position = %v, want 42", p.Snapshot().Position)
	}

	p.SeekPercent(50)
	if p.Snapshot().Position != 90 {
		t.Errorf("position = %v, want 90", p.Snapshot().Position)
	}
}

func TestUpdateDownloadStatusMatchesCurrentOnly(t *testing.T) {
	p := NewPlayer(&fakeFetcher{}, nil, 80)

	song := &model.Song{ID: 1, Title: "T", Artist: "A", LocalPath: "/m/t.mp3"}
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}

	p.UpdateDownloadStatus(model.DownloadProgressPayload{Title: "Other", Artist: "B", Message: "nope"})
	if got := p.Snapshot().DownloadMessage; got != "" {
		t.Errorf("mismatched progress stored: %q", got)
	}

	p.UpdateDownloadStatus(model.DownloadProgressPayload{Title: "T", Artist: "A", Message: "⏳ downloading"})
	if got := p.Snapshot().DownloadMessage; got != "⏳ downloading" {
		t.Errorf("downloadMessage = %q", got)
	}
}

func TestTogglePlay(t *testing.T) {
	p := NewPlayer(&fakeFetcher{}, nil, 80)

	// idle: nothing to toggle
	p.TogglePlay()
	if p.State() != StateIdle {
		t.Errorf("toggle from idle moved to %s", p.State())
	}

	song := &model.Song{ID: 1, Title: "T", LocalPath: "/m/t.mp3"}
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}

	p.TogglePlay()
	if p.State() != StatePaused {
		t.Errorf("state = %s, want paused", p.State())
	}
	p.TogglePlay()
	if p.State() != StatePlaying {
		t.Errorf("state = %s, want playing", p.State())
	}
}

func TestClearPlayer(t *testing.T) {
	sink := &fakeSink{}
	p := NewPlayer(&fakeFetcher{lyrics: "[00:01.00]line"}, sink, 80)

	song := &model.Song{ID: 1, Title: "T", LocalPath: "/m/t.mp3"}
	if err := p.PlaySong(context.Background(), song); err != nil {
		t.Fatalf("PlaySong: %v", err)
	}
	p.SetDuration(100)
	p.UpdateTime(10)

	p.ClearPlayer()
	snap := p.Snapshot()
	if snap.Current != nil || snap.AudioURL != "" || snap.State != StateIdle {
		t.Errorf("clear left state behind: %+v", snap)
	}
	if snap.Position != 0 || snap.Duration != 0 || len(snap.Lyrics) != 0 || snap.LyricIndex != -1 {
		t.Errorf("clear left session fields behind: %+v", snap)
	}
}
