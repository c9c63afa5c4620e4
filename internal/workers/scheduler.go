package workers

import (
	"context"
	"log"
	"sync"
	"time"
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each job once when started and then on its own ticker. A
// job never overlaps with itself: a tick that fires while the previous run is
// still going is dropped.
type Scheduler struct {
	jobs []Job
	wg   sync.WaitGroup
	stop context.CancelFunc
}

func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.stop = context.WithCancel(ctx)

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	log.Printf("Scheduler: started %d jobs", len(s.jobs))
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	runJob(ctx, job)
	for {
		select {
		case <-ticker.C:
			runJob(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func runJob(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Printf("Scheduler: job %s failed: %v", job.Name, err)
		return
	}
	log.Printf("Scheduler: job %s finished in %s", job.Name, time.Since(start).Round(time.Millisecond))
}

// Stop cancels running jobs and waits for their loops to exit.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	log.Println("Stopping scheduler...")
	s.stop()
	s.wg.Wait()
	log.Println("Scheduler stopped")
}
