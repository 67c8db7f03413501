package worker

import (
	"context"
	"time"

	"hemnetscraper/logger"
)

// Job is one crawl pass over a listing surface. Jobs do their own
// persistence and publishing; the worker only schedules them.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Worker runs its jobs sequentially, then sleeps for the crawl interval
// and repeats. Jobs against the same site never run in parallel so that
// the politeness delays stay meaningful.
type Worker struct {
	jobs     []Job
	interval time.Duration
	runOnce  bool
	log      *logger.Logger
}

// NewWorker creates a worker for the given jobs.
func NewWorker(jobs []Job, interval time.Duration, runOnce bool) *Worker {
	return &Worker{
		jobs:     jobs,
		interval: interval,
		runOnce:  runOnce,
		log:      logger.ForComponent("worker"),
	}
}

// Start blocks until the context is cancelled, or after one pass when the
// worker was created with runOnce.
func (w *Worker) Start(ctx context.Context) {
	for {
		start := time.Now()
		w.runJobs(ctx)
		w.log.Info().Dur("elapsed", time.Since(start)).Msg("Crawl pass finished")

		if w.runOnce {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.interval):
		}
	}
}

func (w *Worker) runJobs(ctx context.Context) {
	for _, job := range w.jobs {
		if ctx.Err() != nil {
			return
		}

		log := w.log.WithField("job", job.Name())
		log.Info().Msg("Starting crawl")

		if err := job.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Crawl failed")
			continue
		}
		log.Info().Msg("Crawl finished")
	}
}
