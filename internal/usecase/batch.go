package usecase

import (
	"context"
	"runtime"

	"github.com/alitto/pond"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/usgs/neic-locator-go/internal/domain"
)

// BatchJob pairs one location request with a stable identifier used to
// correlate it back to its response (e.g. an input file name).
type BatchJob struct {
	ID      string
	Request LocateRequest
}

// BatchResult pairs one job's identifier with its outcome.
type BatchResult struct {
	ID       string
	Response LocateResponse
	Err      error
}

// Collaborators groups the shared, read-only auxiliary data every Engine
// instance in a batch is built against: loaded once at process start,
// safely shared by value/pointer across goroutines without further locking.
type Collaborators struct {
	TravelTime domain.TravelTimeService
	Craton     domain.CratonMap
	Zones      domain.ZoneStats
}

// RunBatch processes jobs concurrently, one independent Engine per event
// (own Event, RankSumEstimator, Decorrelator, PhaseID state — no shared
// mutable state crosses job boundaries), bounded by a pond worker pool
// sized to workers (GOMAXPROCS if workers <= 0). An errgroup waits for every
// job; a job's failure is recorded in its BatchResult.Err and does not stop
// the other jobs, so the returned error is nil.
func RunBatch(ctx context.Context, jobs []BatchJob, collab Collaborators, workers int, log *logrus.Entry) ([]BatchResult, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	pool := pond.New(workers, len(jobs), pond.MinWorkers(workers), pond.Context(ctx))
	defer pool.StopAndWait()

	group, _ := errgroup.WithContext(ctx)
	results := make([]BatchResult, len(jobs))

	for i, job := range jobs {
		i, job := i, job
		group.Go(func() error {
			done := make(chan struct{})
			pool.Submit(func() {
				defer close(done)
				results[i] = runOne(job, collab, log)
			})
			<-done
			return nil
		})
	}

	err := group.Wait()
	return results, err
}

// runOne builds and locates a single event. A failure to build the engine is
// captured in BatchResult.Err rather than aborting the batch; the location
// outcome itself is reported in the response's exit code.
func runOne(job BatchJob, collab Collaborators, log *logrus.Entry) BatchResult {
	entry := log.WithField("event_id", job.ID)
	engine, err := NewEngine(job.Request, collab.TravelTime, collab.Craton, collab.Zones, entry)
	if err != nil {
		entry.WithError(err).Warn("failed to build engine")
		return BatchResult{ID: job.ID, Err: err}
	}
	resp := engine.Locate()
	return BatchResult{ID: job.ID, Response: resp}
}
