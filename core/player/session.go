package player

import "MeloFM/model"

// State 播放器状态机状态
type State string

const (
	StateIdle      State = "idle"
	StateResolving State = "resolving" // previous output stopped, track not yet adopted
	StateFetching  State = "fetching"  // locating a playable audio URL
	StateReady     State = "ready"     // URL resolved, playback not yet started
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateFailed    State = "failed"
)

// Snapshot is a consistent copy of the session handed to observers.
// The queue and current song are shared references; everything else is
// copied.
type Snapshot struct {
	Current         *model.Song
	State           State
	Position        float64
	Duration        float64
	Volume          int
	Muted           bool
	AudioURL        string
	Lyrics          []model.LyricLine
	LyricIndex      int
	DownloadMessage string
	FailCause       string
}

// Progress 播放进度百分比
func (s Snapshot) Progress() float64 {
	if s.Duration == 0 {
		return 0
	}
	return s.Position / s.Duration * 100
}
