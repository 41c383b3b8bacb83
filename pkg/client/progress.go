package client

import (
	"sync/atomic"
	"time"
)

// ProgressReporter reports transfer progress
type ProgressReporter interface {
	Update(bytesTransferred, totalBytes int64)
	Done()
	Error(err error)
}

// ProgressFunc adapts a plain function to ProgressReporter; Done and Error
// are no-ops.
type ProgressFunc func(bytesTransferred, totalBytes int64)

func (f ProgressFunc) Update(bytesTransferred, totalBytes int64) {
	f(bytesTransferred, totalBytes)
}

func (f ProgressFunc) Done()       {}
func (f ProgressFunc) Error(error) {}

// Progress is a snapshot of one transfer
type Progress struct {
	TotalBytes       int64
	TransferredBytes int64
	StartTime        time.Time
	CurrentSpeed     float64 // bytes/sec over the last interval
	AverageSpeed     float64 // bytes/sec since start
	EstimatedTime    time.Duration
	ElapsedTime      time.Duration
	Error            error
}

// ProgressCallback receives progress snapshots
type ProgressCallback func(Progress)

// ProgressTracker tracks the progress of one transfer and reports throttled
// snapshots to a callback. Byte accounting is safe for concurrent use; the
// snapshot calculation is not and belongs to the transfer's owning goroutine.
type ProgressTracker struct {
	totalBytes       int64
	transferredBytes int64
	startTime        time.Time
	lastUpdate       time.Time
	lastBytes        int64
	callback         ProgressCallback
	updateInterval   time.Duration
}

// NewProgressTracker creates a tracker for a transfer of totalBytes (zero if
// unknown), reporting to callback at most every 100ms.
func NewProgressTracker(totalBytes int64, callback ProgressCallback) *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		totalBytes:     totalBytes,
		startTime:      now,
		lastUpdate:     now,
		callback:       callback,
		updateInterval: 100 * time.Millisecond,
	}
}

// Update implements ProgressReporter. totalBytes replaces the tracker's total
// when positive, for transfers whose size becomes known mid-flight.
func (pt *ProgressTracker) Update(bytesTransferred, totalBytes int64) {
	atomic.AddInt64(&pt.transferredBytes, bytesTransferred)
	if totalBytes > 0 {
		pt.totalBytes = totalBytes
	}

	now := time.Now()
	if now.Sub(pt.lastUpdate) >= pt.updateInterval {
		pt.report()
		pt.lastUpdate = now
	}
}

// Done implements ProgressReporter, emitting a final snapshot.
func (pt *ProgressTracker) Done() {
	pt.report()
}

// Error implements ProgressReporter, emitting a snapshot carrying err.
func (pt *ProgressTracker) Error(err error) {
	progress := pt.snapshot()
	progress.Error = err
	if pt.callback != nil {
		pt.callback(progress)
	}
}

func (pt *ProgressTracker) report() {
	if pt.callback != nil {
		pt.callback(pt.snapshot())
	}
}

func (pt *ProgressTracker) snapshot() Progress {
	now := time.Now()
	elapsed := now.Sub(pt.startTime)
	transferred := atomic.LoadInt64(&pt.transferredBytes)

	currentSpeed := float64(0)
	if diff := now.Sub(pt.lastUpdate).Seconds(); diff > 0 {
		currentSpeed = float64(transferred-pt.lastBytes) / diff
	}

	averageSpeed := float64(0)
	if seconds := elapsed.Seconds(); seconds > 0 {
		averageSpeed = float64(transferred) / seconds
	}

	estimated := time.Duration(0)
	if averageSpeed > 0 && pt.totalBytes > 0 {
		remaining := pt.totalBytes - transferred
		estimated = time.Duration(float64(remaining) / averageSpeed * float64(time.Second))
	}

	pt.lastBytes = transferred

	return Progress{
		TotalBytes:       pt.totalBytes,
		TransferredBytes: transferred,
		StartTime:        pt.startTime,
		CurrentSpeed:     currentSpeed,
		AverageSpeed:     averageSpeed,
		EstimatedTime:    estimated,
		ElapsedTime:      elapsed,
	}
}
