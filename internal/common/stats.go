package common

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// Stats holds atomic counters shared by concurrent conversions
type Stats struct {
	DatasetsBuilt   uint64 // Canonical datasets built
	DatasetsFailed  uint64 // Sources that failed to convert
	PointsProcessed uint64 // ssi values built
	BytesDownloaded uint64 // Raw bytes fetched

	// Internal state for reporter
	running   atomic.Bool
	stopCh    chan struct{}
	silent    bool
	out       io.Writer
	lastPts   uint64
	lastBytes uint64
	lastTime  time.Time
	interval  time.Duration
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		stopCh:   make(chan struct{}),
		out:      os.Stdout,
		interval: 500 * time.Millisecond,
	}
}

// AddDataset atomically counts one built dataset and its points
func (s *Stats) AddDataset(points uint64) {
	atomic.AddUint64(&s.DatasetsBuilt, 1)
	atomic.AddUint64(&s.PointsProcessed, points)
}

// AddFailure atomically counts one failed source
func (s *Stats) AddFailure() {
	atomic.AddUint64(&s.DatasetsFailed, 1)
}

// AddBytes atomically increments the downloaded bytes counter
func (s *Stats) AddBytes(count uint64) {
	atomic.AddUint64(&s.BytesDownloaded, count)
}

// GetDatasets atomically reads the built datasets counter
func (s *Stats) GetDatasets() uint64 {
	return atomic.LoadUint64(&s.DatasetsBuilt)
}

// GetFailures atomically reads the failed sources counter
func (s *Stats) GetFailures() uint64 {
	return atomic.LoadUint64(&s.DatasetsFailed)
}

// GetPoints atomically reads the points counter
func (s *Stats) GetPoints() uint64 {
	return atomic.LoadUint64(&s.PointsProcessed)
}

// GetBytes atomically reads the downloaded bytes counter
func (s *Stats) GetBytes() uint64 {
	return atomic.LoadUint64(&s.BytesDownloaded)
}

// SetSilent enables or disables silent mode
func (s *Stats) SetSilent(silent bool) {
	s.silent = silent
}

// SetOutput redirects progress lines
func (s *Stats) SetOutput(w io.Writer) {
	s.out = w
}

// StartReporter starts a background goroutine that prints progress
// every interval using newline-based output to avoid conflicts with log.Printf
func (s *Stats) StartReporter() {
	if s.running.Load() {
		return // Already running
	}

	s.running.Store(true)
	s.lastTime = time.Now()
	s.lastPts = 0
	s.lastBytes = 0

	go s.reporterLoop()
}

// StopReporter stops the background reporter goroutine
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}

	s.running.Store(false)
	close(s.stopCh)
}

func (s *Stats) reporterLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.printStatus()
		}
	}
}

func (s *Stats) printStatus() {
	if s.silent {
		return
	}

	now := time.Now()
	elapsed := now.Sub(s.lastTime).Seconds()
	if elapsed < 0.001 {
		return
	}

	pts := s.GetPoints()
	bytes := s.GetBytes()

	mibPerSec := (float64(bytes-s.lastBytes) / (1024 * 1024)) / elapsed
	kpps := (float64(pts-s.lastPts) / 1000) / elapsed

	fmt.Fprintf(s.out, "[Progress] Download: %.2f MiB/s | Build: %.1f kpts/s | Datasets: %d ok, %d failed | Total: %d points\n",
		mibPerSec,
		kpps,
		s.GetDatasets(),
		s.GetFailures(),
		pts,
	)

	s.lastPts = pts
	s.lastBytes = bytes
	s.lastTime = now
}

// Summary formats the final counters
func (s *Stats) Summary() string {
	return fmt.Sprintf("datasets=%d failed=%d points=%d downloaded=%d bytes",
		s.GetDatasets(), s.GetFailures(), s.GetPoints(), s.GetBytes())
}

// Reset resets all counters (useful for testing or restarting)
func (s *Stats) Reset() {
	atomic.StoreUint64(&s.DatasetsBuilt, 0)
	atomic.StoreUint64(&s.DatasetsFailed, 0)
	atomic.StoreUint64(&s.PointsProcessed, 0)
	atomic.StoreUint64(&s.BytesDownloaded, 0)
	s.lastPts = 0
	s.lastBytes = 0
	s.lastTime = time.Now()
}
