package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scout/internal/client"
	"github.com/desertthunder/scout/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultPollInterval = 3 * time.Second
	// Consecutive poll failures tolerated before the job is failed with a
	// network error. A single flaky tick is retried silently.
	maxPollFailures = 3

	updateBuffer = 32
)

// Recorder is the append-only history consulted for display. The lifecycle
// never reads it back; write failures are logged and swallowed.
type Recorder interface {
	Append(taskID, query string) error
	UpdateStatus(taskID string, status string) error
}

// Controller starts research jobs and owns their lifecycle machinery.
type Controller struct {
	client       *client.Client
	history      Recorder
	logger       *log.Logger
	pollInterval time.Duration
}

// NewController creates a Controller. history may be nil when no local
// record is wanted.
func NewController(c *client.Client, history Recorder, logger *log.Logger) *Controller {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Controller{
		client:       c,
		history:      history,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// SetPollInterval overrides the status polling cadence.
func (c *Controller) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// Job is one running research task: its merged progress view, its poll and
// stream machinery, and the exactly-once finalize guard.
type Job struct {
	taskID string
	query  string

	ctrl *Controller

	mu       sync.Mutex
	status   Status
	progress Snapshot
	result   *Result
	err      error
	stream   io.ReadCloser
	closed   bool

	updates chan Update
	done    chan struct{}
	kick    chan struct{}

	finalizeOnce sync.Once
	stopPoll     context.CancelFunc
	open         atomic.Int32
}

// Start validates and submits a research request, then begins polling and
// opens the push stream. A failure to submit is returned synchronously and
// leaves no machinery behind.
func (c *Controller) Start(ctx context.Context, req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var sr startResponse
	if err := c.client.Post(ctx, "/task", req, &sr); err != nil {
		return nil, err
	}
	if sr.TaskID == "" {
		return nil, fmt.Errorf("%w: start response missing task id", shared.ErrRequestFailed)
	}

	c.logger.Info("research task started", "task_id", sr.TaskID, "depth", req.Depth)

	if c.history != nil {
		if err := c.history.Append(sr.TaskID, req.Query); err != nil {
			c.logger.Warn("failed to record history entry", "task_id", sr.TaskID, "error", err)
		}
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	j := &Job{
		taskID:   sr.TaskID,
		query:    req.Query,
		ctrl:     c,
		status:   StatusSubmitted,
		updates:  make(chan Update, updateBuffer),
		done:     make(chan struct{}),
		kick:     make(chan struct{}, 1),
		stopPoll: cancel,
	}

	j.open.Add(2)
	go j.poll(pollCtx)
	go j.subscribe(pollCtx)

	return j, nil
}

// Status fetches a one-shot snapshot of a task without attaching lifecycle
// machinery to it.
func (c *Controller) Status(ctx context.Context, taskID string) (Status, Snapshot, error) {
	var sr statusResponse
	if err := c.client.Get(ctx, "/task/"+taskID+"/status", &sr); err != nil {
		return "", Snapshot{}, translateNotFound(err, taskID)
	}

	var snap Snapshot
	snap.merge(sr.Progress)
	return sr.Status, snap, nil
}

// Result fetches the final report of a completed task.
func (c *Controller) Result(ctx context.Context, taskID string) (*Result, error) {
	var res Result
	if err := c.client.Get(ctx, "/task/"+taskID+"/result", &res); err != nil {
		return nil, translateNotFound(err, taskID)
	}
	return &res, nil
}

// translateNotFound maps a 404 from the task endpoints onto the task-not-found
// sentinel so callers can distinguish a bad id from other request failures.
func translateNotFound(err error, taskID string) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, taskID)
	}
	return err
}

// TaskID returns the server-assigned task identifier.
func (j *Job) TaskID() string { return j.taskID }

// Query returns the submitted query text.
func (j *Job) Query() string { return j.query }

// Status returns the last status confirmed by polling.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Progress returns a copy of the merged progress snapshot.
func (j *Job) Progress() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress.clone()
}

// Result returns the final report, non-nil only once the job completed.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Err returns the error that terminated the job, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Updates returns the progress channel. It is closed after the terminal
// update is published.
func (j *Job) Updates() <-chan Update { return j.updates }

// Done returns a channel closed when the job has finalized.
func (j *Job) Done() <-chan struct{} { return j.done }

// OpenResources reports how many of the job's poll/stream resources are
// still live. Zero after finalize.
func (j *Job) OpenResources() int {
	return int(j.open.Load())
}

// Cancel asks the backend to cancel the task and, on acknowledgement,
// finalizes the job as cancelled immediately, independent of whatever a
// late-arriving poll would report. A failed cancel call is returned to the
// caller and not retried.
func (j *Job) Cancel(ctx context.Context) error {
	if err := j.ctrl.client.Delete(ctx, "/task/"+j.taskID); err != nil {
		return err
	}
	j.finalize(StatusCancelled, nil)
	return nil
}

// Close releases the job's poll and stream resources unconditionally. Safe
// to call at any point, including after the job already finalized.
func (j *Job) Close() error {
	j.finalize("", nil)
	return nil
}

// poll is the job's status loop and the sole authority for terminal
// transitions. Transient failures are retried up to maxPollFailures
// consecutive ticks; auth failures end the job at once.
func (j *Job) poll(ctx context.Context) {
	defer j.open.Add(-1)

	limiter := rate.NewLimiter(rate.Every(j.ctrl.pollInterval), 1)
	failures := 0

	for {
		if !j.pace(ctx, limiter) {
			return
		}

		var sr statusResponse
		err := j.ctrl.client.Get(ctx, "/task/"+j.taskID+"/status", &sr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, shared.ErrAuthExpired) || errors.Is(err, shared.ErrForbidden) {
				j.finalize(StatusFailed, err)
				return
			}

			failures++
			j.ctrl.logger.Debug("status poll failed", "task_id", j.taskID, "attempt", failures, "error", err)
			if failures >= maxPollFailures {
				j.finalize(StatusFailed, fmt.Errorf("%w: %d consecutive poll failures: %v", shared.ErrNetwork, failures, err))
				return
			}
			continue
		}
		failures = 0

		snap, changed := j.apply(sr)
		if changed {
			j.emit(Update{Kind: UpdateProgress, Status: sr.Status, Progress: snap})
		}

		if sr.Status.Terminal() {
			var jobErr error
			if sr.Status == StatusFailed {
				jobErr = fmt.Errorf("%w: %s", shared.ErrRequestFailed, sr.Error)
			}
			if sr.Status == StatusCompleted {
				j.fetchResult(ctx)
			}
			j.finalize(sr.Status, jobErr)
			return
		}
	}
}

// pace blocks until the next poll tick. A stream hint on the kick channel
// releases the tick early. Returns false when the context is cancelled.
func (j *Job) pace(ctx context.Context, limiter *rate.Limiter) bool {
	res := limiter.Reserve()
	delay := res.Delay()
	if delay == 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		res.Cancel()
		return false
	case <-j.kick:
		res.Cancel()
		return true
	case <-timer.C:
		return true
	}
}

// fetchResult populates the final report for a completed task. Best effort:
// a failure here leaves the result nil but does not change the terminal
// outcome.
func (j *Job) fetchResult(ctx context.Context) {
	res, err := j.ctrl.Result(ctx, j.taskID)
	if err != nil {
		j.ctrl.logger.Warn("failed to fetch result", "task_id", j.taskID, "error", err)
		return
	}
	j.mu.Lock()
	j.result = res
	j.mu.Unlock()
}

// apply merges one polled snapshot into the job under the lock. A status
// change arriving after a terminal state is a defensive no-op, logged and
// dropped.
func (j *Job) apply(sr statusResponse) (Snapshot, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		if sr.Status != j.status {
			j.ctrl.logger.Warn("dropping transition after terminal state",
				"task_id", j.taskID, "terminal", j.status, "incoming", sr.Status,
				"error", shared.ErrTaskTerminal)
		}
		return j.progress.clone(), false
	}

	j.status = sr.Status
	j.progress.merge(sr.Progress)
	return j.progress.clone(), true
}

// subscribe opens the push event stream and feeds its events into the
// merged view. The stream is advisory: terminal-equivalent events only
// prompt an early poll, they never transition the job directly.
func (j *Job) subscribe(ctx context.Context) {
	defer j.open.Add(-1)

	body, err := j.ctrl.client.OpenStream(ctx, "/task/"+j.taskID+"/stream")
	if err != nil {
		j.ctrl.logger.Debug("push stream unavailable, polling only", "task_id", j.taskID, "error", err)
		return
	}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		body.Close()
		return
	}
	j.stream = body
	j.mu.Unlock()

	if err := readEvents(body, j.handleEvent); err != nil && ctx.Err() == nil {
		j.ctrl.logger.Debug("push stream ended", "task_id", j.taskID, "error", err)
	}
}

// handleEvent dispatches one named stream event.
func (j *Job) handleEvent(ev streamEvent) {
	switch ev.Name {
	case eventProgress:
		var p progressPayload
		if err := decodePayload(ev.Data, &p); err != nil {
			j.ctrl.logger.Debug("malformed progress event", "task_id", j.taskID, "error", err)
			return
		}
		snap, changed := j.applyProgress(p)
		if changed {
			j.emit(Update{Kind: UpdateProgress, Status: j.Status(), Progress: snap})
		}

	case eventSourceFound:
		var p struct {
			Source
			SourcesFound *int `json:"sourcesFound"`
		}
		if err := decodePayload(ev.Data, &p); err != nil {
			j.ctrl.logger.Debug("malformed sourceFound event", "task_id", j.taskID, "error", err)
			return
		}
		snap, _ := j.applyProgress(progressPayload{SourcesFound: p.SourcesFound})
		src := p.Source
		j.emit(Update{Kind: UpdateSource, Status: j.Status(), Progress: snap, Source: &src})

	case eventComplete:
		// Hint only: re-check status via polling rather than trusting an
		// out-of-order push message.
		j.hintPoll()

	case eventError:
		var p errorPayload
		if err := decodePayload(ev.Data, &p); err == nil && p.text() != "" {
			j.ctrl.logger.Debug("stream reported error", "task_id", j.taskID, "message", p.text())
		}
		j.hintPoll()
	}
}

// applyProgress merges a stream payload into the snapshot without touching
// the status. Frozen after terminal.
func (j *Job) applyProgress(p progressPayload) (Snapshot, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Terminal() {
		return j.progress.clone(), false
	}
	j.progress.merge(p)
	return j.progress.clone(), true
}

// hintPoll nudges the poll loop to run its next tick immediately.
func (j *Job) hintPoll() {
	select {
	case j.kick <- struct{}{}:
	default:
	}
}

// emit publishes one update without ever blocking the lifecycle machinery.
// Updates are dropped when the consumer lags; the terminal state remains
// observable through the accessors and Done.
func (j *Job) emit(u Update) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	select {
	case j.updates <- u:
	default:
	}
}

// finalize is the exactly-once teardown: stop polling, close the stream,
// freeze the terminal status, update history, publish the terminal update,
// and close the channels. status may be empty on plain disposal, in which
// case the current status is kept as-is.
func (j *Job) finalize(status Status, err error) {
	j.finalizeOnce.Do(func() {
		j.stopPoll()

		j.mu.Lock()
		if j.stream != nil {
			j.stream.Close()
			j.stream = nil
		}
		if status != "" && !j.status.Terminal() {
			j.status = status
		}
		if err != nil && j.err == nil {
			j.err = err
		}
		final := j.status
		snap := j.progress.clone()
		finalErr := j.err
		j.closed = true

		select {
		case j.updates <- Update{Kind: UpdateTerminal, Status: final, Progress: snap, Err: finalErr}:
		default:
		}
		close(j.updates)
		j.mu.Unlock()

		if j.ctrl.history != nil && final.Terminal() {
			if herr := j.ctrl.history.UpdateStatus(j.taskID, string(final)); herr != nil {
				j.ctrl.logger.Warn("failed to update history status", "task_id", j.taskID, "error", herr)
			}
		}

		j.ctrl.logger.Info("research task finalized", "task_id", j.taskID, "status", final)
		close(j.done)
	})
}
