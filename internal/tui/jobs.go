package tui

import (
	"context"
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

type jobKind string

type jobStatus string

const (
	jobKindFetch    jobKind = "fetch"
	jobKindFollow   jobKind = "follow"
	jobKindLike     jobKind = "like"
	jobKindPosition jobKind = "position"
)

const (
	jobStatusRunning   jobStatus = "running"
	jobStatusSucceeded jobStatus = "succeeded"
	jobStatusFailed    jobStatus = "failed"
)

type jobSnapshot struct {
	ID          string
	Kind        jobKind
	Status      jobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Err         string
	Duration    time.Duration
}

type jobSignalMsg struct {
	Snapshot jobSnapshot
}

type jobResultEnvelope struct {
	Snapshot jobSnapshot
	Payload  tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

type jobBus struct {
	running map[string]jobSnapshot
	last    *jobSnapshot
}

func newJobBus() *jobBus {
	return &jobBus{running: map[string]jobSnapshot{}}
}

func (b *jobBus) nextID(kind jobKind) string {
	return fmt.Sprintf("%s-%s", kind, ulid.Make())
}

// Start runs runner under ctx off the event loop. The returned command first reports the job
// as running, then delivers its payload wrapped in a jobResultEnvelope.
func (b *jobBus) Start(ctx context.Context, kind jobKind, runner jobRunner) tea.Cmd {
	id := b.nextID(kind)
	started := time.Now()
	startSnapshot := jobSnapshot{ID: id, Kind: kind, Status: jobStatusRunning, StartedAt: started}
	startCmd := func() tea.Msg {
		return jobSignalMsg{Snapshot: startSnapshot}
	}

	runCmd := func() tea.Msg {
		payload, err := runner(ctx)
		snapshot := jobSnapshot{
			ID:          id,
			Kind:        kind,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}
		if err != nil {
			snapshot.Status = jobStatusFailed
			snapshot.Err = err.Error()
		} else {
			snapshot.Status = jobStatusSucceeded
		}
		snapshot.Duration = snapshot.CompletedAt.Sub(started)
		glog.Infof("[jobs] %s %s %s (duration=%s, err=%v)", id, kind, snapshot.Status, snapshot.Duration, err)
		return jobResultEnvelope{Snapshot: snapshot, Payload: payload}
	}

	return tea.Sequence(startCmd, runCmd)
}

// Track records a job state change seen by the event loop.
func (b *jobBus) Track(s jobSnapshot) {
	if s.Status == jobStatusRunning {
		b.running[s.ID] = s
		return
	}
	delete(b.running, s.ID)
	b.last = &s
}

// Running returns the running jobs, oldest first.
func (b *jobBus) Running() []jobSnapshot {
	jobs := make([]jobSnapshot, 0, len(b.running))
	for _, s := range b.running {
		jobs = append(jobs, s)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartedAt.Equal(jobs[j].StartedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})
	return jobs
}

// Last returns the most recently finished job.
func (b *jobBus) Last() (jobSnapshot, bool) {
	if b.last == nil {
		return jobSnapshot{}, false
	}
	return *b.last, true
}
