package progress

import (
	"testing"
	"time"

	"MeloFM/model"
)

func TestUpdateArtistReplacesWholesale(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.UpdateArtist(model.ArtistProgress{ArtistID: "1", ArtistName: "Artist", State: model.ProgressScanning, Progress: 10, Message: "scanning"})
	r.UpdateArtist(model.ArtistProgress{ArtistID: "1", State: model.ProgressMatching, Progress: 50})

	p, ok := r.GetArtist("1")
	if !ok {
		t.Fatal("record missing")
	}
	if p.State != model.ProgressMatching || p.Progress != 50 {
		t.Errorf("got %+v, want matching/50", p)
	}
	// Wholesale replacement: the name from the first update is gone.
	if p.ArtistName != "" {
		t.Errorf("stale field survived replacement: %q", p.ArtistName)
	}
	if p.ObservedAt.IsZero() {
		t.Error("ObservedAt not stamped")
	}
}

func TestUpdateArtistRejectsKeyless(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.UpdateArtist(model.ArtistProgress{State: model.ProgressScanning})
	if got := r.Artists(); len(got) != 0 {
		t.Errorf("keyless payload stored: %v", got)
	}
}

func TestTerminalStateEvicts(t *testing.T) {
	r := NewRegistry()
	defer r.Close()
	r.ttl = 50 * time.Millisecond

	r.UpdateArtist(model.ArtistProgress{ArtistID: "1", State: model.ProgressComplete, Progress: 100})

	if _, ok := r.GetArtist("1"); !ok {
		t.Fatal("record must stay visible until the timer fires")
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := r.GetArtist("1"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("terminal record never evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTerminalRearmSupersedes(t *testing.T) {
	r := NewRegistry()
	defer r.Close()
	r.ttl = 60 * time.Millisecond

	r.UpdateArtist(model.ArtistProgress{ArtistID: "1", State: model.ProgressError})
	time.Sleep(40 * time.Millisecond)
	// Second terminal update re-arms a fresh timer; the first timer's
	// deadline passes without removing the new record.
	r.UpdateArtist(model.ArtistProgress{ArtistID: "1", State: model.ProgressComplete})
	time.Sleep(40 * time.Millisecond)

	if _, ok := r.GetArtist("1"); !ok {
		t.Fatal("re-armed record evicted by the superseded timer")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := r.GetArtist("1"); ok {
		t.Fatal("record survived past the re-armed deadline")
	}
}

func TestNonTerminalUpdateCancelsEviction(t *testing.T) {
	r := NewRegistry()
	defer r.Close()
	r.ttl = 40 * time.Millisecond

	r.UpdateArtist(model.ArtistProgress{ArtistID: "1", State: model.ProgressComplete})
	r.UpdateArtist(model.ArtistProgress{ArtistID: "1", State: model.ProgressRescue})

	time.Sleep(80 * time.Millisecond)
	if _, ok := r.GetArtist("1"); !ok {
		t.Fatal("live record evicted by a cancelled timer")
	}
}

func TestTasksAreDurable(t *testing.T) {
	r := NewRegistry()
	defer r.Close()
	r.ttl = 20 * time.Millisecond

	r.UpdateTask(model.TaskInfo{TaskID: "t1", TaskType: "download", State: model.TaskCompleted, Progress: 100})

	time.Sleep(60 * time.Millisecond)
	task, ok := r.GetTask("t1")
	if !ok {
		t.Fatal("durable task expired")
	}
	if task.State != model.TaskCompleted {
		t.Errorf("state = %s, want completed", task.State)
	}
}

func TestUpdateTaskRejectsKeyless(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.UpdateTask(model.TaskInfo{TaskType: "download", State: model.TaskRunning})
	if got := r.Tasks(); len(got) != 0 {
		t.Errorf("keyless task stored: %v", got)
	}
}

func TestSnapshots(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.UpdateArtist(model.ArtistProgress{ArtistID: "1", State: model.ProgressScanning})
	r.UpdateArtist(model.ArtistProgress{ArtistID: "2", State: model.ProgressPending})
	r.UpdateTask(model.TaskInfo{TaskID: "t1", State: model.TaskRunning})

	if len(r.Artists()) != 2 {
		t.Errorf("Artists() = %d entries, want 2", len(r.Artists()))
	}
	if len(r.Tasks()) != 1 {
		t.Errorf("Tasks() = %d entries, want 1", len(r.Tasks()))
	}
}
