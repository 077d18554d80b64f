package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// Job states.
const (
	JobRunning  = "running"
	JobComplete = "complete"
	JobError    = "error"
)

// JobStatus represents the current state of a background job.
type JobStatus struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"` // embed, transcribe
	PodcastID   int64     `json:"podcast_id"`
	EpisodeID   int64     `json:"episode_id"`
	Status      string    `json:"status"` // running, complete, error
	Stage       string    `json:"stage,omitempty"`
	Result      any       `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// JobFunc does the work of a job. It may report its stage through progress.
type JobFunc func(ctx context.Context, progress func(stage string)) (any, error)

// JobTracker manages background jobs in memory.
type JobTracker struct {
	mu      sync.RWMutex
	jobs    map[string]*JobStatus
	subs    map[string][]chan JobStatus // subscribers per job
	timeout time.Duration
}

// NewJobTracker creates a new job tracker. Each job gets at most timeout to run.
func NewJobTracker(timeout time.Duration) *JobTracker {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &JobTracker{
		jobs:    make(map[string]*JobStatus),
		subs:    make(map[string][]chan JobStatus),
		timeout: timeout,
	}
}

// Start registers a job and runs fn in the background. It returns the job snapshot.
func (t *JobTracker) Start(kind string, podcastID, episodeID int64, fn JobFunc) JobStatus {
	id := uuid.NewString()
	t.mu.Lock()
	job := &JobStatus{
		ID:        id,
		Kind:      kind,
		PodcastID: podcastID,
		EpisodeID: episodeID,
		Status:    JobRunning,
		StartedAt: time.Now(),
	}
	t.jobs[id] = job
	snapshot := *job
	t.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		result, err := fn(ctx, func(stage string) { t.update(id, stage, nil, nil) })
		if err != nil {
			slog.Error("job failed", "job_id", id, "kind", kind, "episode_id", episodeID, "error", err)
		}
		t.update(id, "", result, &err)
	}()

	return snapshot
}

// update records a stage change, or the job's end when done is non-nil, and notifies subscribers.
func (t *JobTracker) update(id, stage string, result any, done *error) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	if stage != "" {
		job.Stage = stage
	}
	if done != nil {
		job.Result = result
		job.Status = JobComplete
		if *done != nil {
			job.Status = JobError
			job.Error = (*done).Error()
		}
		job.CompletedAt = time.Now()
	}
	snapshot := *job
	subs := append([]chan JobStatus(nil), t.subs[id]...)
	t.mu.Unlock()

	// Notify subscribers
	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// GetJob returns a job status.
func (t *JobTracker) GetJob(id string) (*JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Subscribe returns a channel that receives job updates.
func (t *JobTracker) Subscribe(id string) chan JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan JobStatus, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes a channel from subscribers.
func (t *JobTracker) Unsubscribe(id string, ch chan JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(ch)
}

func finished(status string) bool {
	return status == JobComplete || status == JobError
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	tracker *JobTracker
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(tracker *JobTracker) *JobsHandler {
	return &JobsHandler{tracker: tracker}
}

// Register sets up job routes.
func (h *JobsHandler) Register(router fiber.Router) {
	jobs := router.Group("/jobs")
	jobs.Get("/:id", h.GetStatus)
	jobs.Get("/:id/stream", h.StreamSSE)
}

// GetStatus returns the current job status.
func (h *JobsHandler) GetStatus(c fiber.Ctx) error {
	id := c.Params("id")
	job, ok := h.tracker.GetJob(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}

// StreamSSE streams job updates via Server-Sent Events.
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("id")

	job, ok := h.tracker.GetJob(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}

	setSSEHeaders(c)

	// If already finished, just return the final status
	if finished(job.Status) {
		data, _ := json.Marshal(job)
		return c.SendString(fmt.Sprintf("event: %s\ndata: %s\n\n", job.Status, string(data)))
	}

	ch := h.tracker.Subscribe(id)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.tracker.Unsubscribe(id, ch)

		// Send initial status
		data, _ := json.Marshal(job)
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", string(data))
		w.Flush()

		timeout := time.After(30 * time.Minute)
		for {
			select {
			case update, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(update)
				eventType := "progress"
				if finished(update.Status) {
					eventType = update.Status
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, string(data))
				if err := w.Flush(); err != nil {
					return
				}

				if finished(update.Status) {
					return
				}
			case <-timeout:
				slog.Warn("SSE timeout", "job_id", id)
				return
			}
		}
	})
}

func setSSEHeaders(c fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
}
