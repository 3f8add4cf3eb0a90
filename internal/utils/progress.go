package utils

import (
	"time"

	"github.com/tanq16/multiget/internal/engine"
)

// TrackProgress starts the single goroutine that owns the job's byte count.
// Fetchers send deltas on the returned channel; closing it and calling wait
// delivers the final update and records the elapsed seconds in
// job.Metadata["totalTime"].
func TrackProgress(job *MultigetJob, total int64) (chan<- engine.ProgressEvent, func()) {
	progressCh := make(chan engine.ProgressEvent, 100)
	progressDone := make(chan struct{})
	startTime := time.Now()

	go func() {
		defer close(progressDone)
		var totalDownloaded int64
		var lastBytes int64

		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-progressCh:
				if !ok {
					if job.ProgressFunc != nil {
						job.ProgressFunc(totalDownloaded, total)
					}
					job.Metadata["totalTime"] = time.Since(startTime).Seconds()
					return
				}
				totalDownloaded += ev.Delta

			case <-ticker.C:
				if totalDownloaded > lastBytes {
					if job.ProgressFunc != nil {
						job.ProgressFunc(totalDownloaded, total)
					}
					lastBytes = totalDownloaded
				}
			}
		}
	}()

	return progressCh, func() {
		close(progressCh)
		<-progressDone
	}
}
