package progress

import (
	"sync"
	"time"

	"MeloFM/logger"
	"MeloFM/model"
)

// evictAfter is how long a terminal artist record stays visible so the
// UI can show the final state before it disappears.
const evictAfter = 3 * time.Second

// Registry holds the two live progress maps: ephemeral per-artist scan
// records that self-expire after completion, and durable task records
// that are kept until the consumer dismisses them.
type Registry struct {
	mu      sync.Mutex
	artists map[string]model.ArtistProgress
	tasks   map[string]model.TaskInfo
	timers  map[string]*time.Timer // pending evictions, keyed by artistId
	ttl     time.Duration
	closed  bool
}

// NewRegistry 创建进度注册表
func NewRegistry() *Registry {
	return &Registry{
		artists: make(map[string]model.ArtistProgress),
		tasks:   make(map[string]model.TaskInfo),
		timers:  make(map[string]*time.Timer),
		ttl:     evictAfter,
	}
}

// UpdateArtist replaces the record for the payload's artist wholesale.
// A terminal state arms eviction; a re-arm supersedes any pending
// timer, and a non-terminal update cancels it. Payloads without an
// artistId are rejected.
func (r *Registry) UpdateArtist(p model.ArtistProgress) {
	if p.ArtistID == "" {
		logger.Warn("artist progress without artistId dropped", logger.String("state", string(p.State)))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	p.ObservedAt = time.Now()
	r.artists[p.ArtistID] = p

	if t, ok := r.timers[p.ArtistID]; ok {
		t.Stop()
		delete(r.timers, p.ArtistID)
	}

	if p.State.Terminal() {
		id := p.ArtistID
		r.timers[id] = time.AfterFunc(r.ttl, func() {
			r.evictArtist(id)
		})
	}
}

// evictArtist removes a record whose eviction timer fired. Deletion is
// keyed by id, so a timer that outlived its record is a harmless no-op.
func (r *Registry) evictArtist(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.artists, id)
	delete(r.timers, id)
}

// UpdateTask upserts a durable task record. There is no eviction for
// tasks; dismissal is the consumer's decision.
func (r *Registry) UpdateTask(t model.TaskInfo) {
	if t.TaskID == "" {
		logger.Warn("task progress without taskId dropped", logger.String("type", t.TaskType))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	t.ObservedAt = time.Now()
	r.tasks[t.TaskID] = t
}

// GetArtist 查询歌手扫描进度
func (r *Registry) GetArtist(id string) (model.ArtistProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.artists[id]
	return p, ok
}

// GetTask 查询任务状态
func (r *Registry) GetTask(id string) (model.TaskInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	return t, ok
}

// Artists returns a snapshot of all live artist records.
func (r *Registry) Artists() []model.ArtistProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.ArtistProgress, 0, len(r.artists))
	for _, p := range r.artists {
		out = append(out, p)
	}
	return out
}

// Tasks returns a snapshot of all durable task records.
func (r *Registry) Tasks() []model.TaskInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.TaskInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}

// Close stops all pending eviction timers. Records are left in place;
// this is process teardown, not a reset.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
