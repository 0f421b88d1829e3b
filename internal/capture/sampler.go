package capture

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one resource measurement of the captured process.
type Sample struct {
	CPUPercent float64
	RSS        uint64 // bytes
	Threads    int32
}

// String formats the sample as the line written to the extra stream.
func (s Sample) String() string {
	return fmt.Sprintf("SAMPLE cpu=%.1f rss=%d threads=%d\n", s.CPUPercent, s.RSS, s.Threads)
}

func measure(p *process.Process) (Sample, error) {
	var s Sample

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return s, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	s.CPUPercent = cpuPercent

	memInfo, err := p.MemoryInfo()
	if err != nil {
		return s, fmt.Errorf("failed to read memory usage: %w", err)
	}
	s.RSS = memInfo.RSS

	// may fail on some platforms, the other fields are still useful
	if numThreads, err := p.NumThreads(); err == nil {
		s.Threads = numThreads
	}

	return s, nil
}

// startSampler writes a Sample of pid to w every interval until the returned stop
// function is called. stop waits for the sampler to exit.
func startSampler(pid int, interval time.Duration, w io.Writer, logger *slog.Logger) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)

		p, err := process.NewProcess(int32(pid))
		if err != nil {
			logger.Debug("Resource sampler disabled", "pid", pid, "error", err)
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s, err := measure(p)
				if err != nil {
					// the process is most likely gone
					logger.Debug("Failed to sample process", "pid", pid, "error", err)
					continue
				}
				_, _ = io.WriteString(w, s.String())
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}
