package protocol

import (
	"context"
	"io"
	"time"
)

// Progress reporting thresholds
const (
	progressReportInterval = 50 * time.Millisecond // Minimum time between progress reports
	progressReportBytes    = 64 * 1024             // Minimum bytes between reports (64KB)
)

// ProgressReader wraps an io.Reader to report progress while a transfer
// streams through it. Reads fail once the context is cancelled, which
// lets backends abort a transfer that their client library cannot
// interrupt on its own.
type ProgressReader struct {
	ctx            context.Context
	reader         io.Reader
	total          int64
	read           int64
	lastReported   int64
	lastReportTime time.Time
	progress       ProgressFunc
}

// NewProgressReader wraps r. total is the expected size, or -1 when
// unknown. progress may be nil.
func NewProgressReader(ctx context.Context, r io.Reader, total int64, progress ProgressFunc) *ProgressReader {
	return &ProgressReader{
		ctx:      ctx,
		reader:   r,
		total:    total,
		progress: progress,
	}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)

		// Throttle progress callbacks: only report if either:
		// 1. Enough bytes have been read since last report (64KB threshold)
		// 2. Enough time has passed since last report (50ms threshold)
		// 3. This is the final read (err == io.EOF or err != nil)
		if pr.progress != nil {
			bytesSinceLastReport := pr.read - pr.lastReported
			timeSinceLastReport := time.Since(pr.lastReportTime)
			shouldReport := bytesSinceLastReport >= progressReportBytes ||
				timeSinceLastReport >= progressReportInterval ||
				err != nil // Always report on completion or error

			if shouldReport {
				pr.progress(pr.read, pr.total)
				pr.lastReported = pr.read
				pr.lastReportTime = time.Now()
			}
		}
	}
	return n, err
}

// Transferred returns the number of bytes read so far
func (pr *ProgressReader) Transferred() int64 {
	return pr.read
}
