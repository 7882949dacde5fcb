package download

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"

	"limeal.fr/gamepipe/pkg/launcherr"
)

type job struct {
	name string
	url  string
	dest string
	sha1 string

	// after runs once dest is verified
	after func() error
}

// run fetches every job with at most d.concurrency fetches in flight. All
// jobs are attempted; failures are joined.
func (d *Downloader) run(ctx context.Context, pipeline, section string, jobs []job) error {
	start := time.Now()
	defer func() {
		d.metrics.duration.WithLabelValues(pipeline).Observe(time.Since(start).Seconds())
	}()

	sem := semaphore.NewWeighted(int64(d.concurrency))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		done    atomic.Int64
		written atomic.Int64
		fetched atomic.Int64
	)

	for _, j := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, launcherr.Task(pipeline, err))
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := d.fetchAndVerify(ctx, pipeline, j.url, j.dest, j.sha1, d.maxTries)
			if err == nil && j.after != nil {
				err = j.after()
			}
			if err != nil {
				d.log.Debug("artifact failed", "pipeline", pipeline, "name", j.name, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			if n > 0 {
				fetched.Add(1)
				written.Add(n)
			}
			d.report(section, int(done.Add(1)), len(jobs), j.name)
		}(j)
	}
	wg.Wait()

	if len(errs) > 0 {
		d.log.Warn("download pipeline failed", "pipeline", pipeline, "failed", len(errs), "total", len(jobs))
		return errors.Join(errs...)
	}

	d.log.Info("download pipeline done",
		"pipeline", pipeline,
		"files", len(jobs),
		"fetched", fetched.Load(),
		"written", humanize.Bytes(uint64(written.Load())),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
