package protocol

import (
	"bytes"
	"context"
	"io"
	"testing"
)

// eofReader returns all its data together with io.EOF in a single read
type eofReader struct {
	data []byte
	done bool
}

func (r *eofReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.done = true
	return n, io.EOF
}

func TestProgressReader(t *testing.T) {
	t.Run("first read reports", func(t *testing.T) {
		var calls []int64
		pr := NewProgressReader(context.Background(), bytes.NewReader([]byte("hello")), 5, func(transferred, total int64) {
			calls = append(calls, transferred)
			if total != 5 {
				t.Errorf("expected total 5, got %d", total)
			}
		})

		buf := make([]byte, 16)
		n, err := pr.Read(buf)
		if err != nil || n != 5 {
			t.Fatalf("Read = (%d, %v)", n, err)
		}
		if len(calls) != 1 || calls[0] != 5 {
			t.Errorf("expected one report of 5 bytes, got %v", calls)
		}
	})

	t.Run("reports on read that returns eof with data", func(t *testing.T) {
		var calls []int64
		pr := NewProgressReader(context.Background(), &eofReader{data: []byte("abc")}, 3, func(transferred, total int64) {
			calls = append(calls, transferred)
		})

		buf := make([]byte, 16)
		if _, err := pr.Read(buf); err != io.EOF {
			t.Fatalf("expected io.EOF, got %v", err)
		}
		if len(calls) != 1 || calls[0] != 3 {
			t.Errorf("expected one report of 3 bytes, got %v", calls)
		}
	})

	t.Run("large read crosses byte threshold", func(t *testing.T) {
		payload := make([]byte, 200*1024)
		var last int64
		pr := NewProgressReader(context.Background(), bytes.NewReader(payload), int64(len(payload)), func(transferred, total int64) {
			last = transferred
		})

		n, err := io.Copy(io.Discard, pr)
		if err != nil {
			t.Fatalf("copy failed: %v", err)
		}
		if n != int64(len(payload)) {
			t.Fatalf("copied %d bytes, want %d", n, len(payload))
		}
		if last < progressReportBytes {
			t.Errorf("expected a report past the byte threshold, last report was %d", last)
		}
		if pr.Transferred() != int64(len(payload)) {
			t.Errorf("Transferred() = %d, want %d", pr.Transferred(), len(payload))
		}
	})

	t.Run("cancelled context stops reads", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pr := NewProgressReader(ctx, bytes.NewReader([]byte("data")), 4, nil)
		buf := make([]byte, 4)
		if _, err := pr.Read(buf); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("nil progress func", func(t *testing.T) {
		pr := NewProgressReader(context.Background(), bytes.NewReader([]byte("data")), 4, nil)
		if _, err := io.Copy(io.Discard, pr); err != nil {
			t.Fatalf("copy failed: %v", err)
		}
		if pr.Transferred() != 4 {
			t.Errorf("Transferred() = %d, want 4", pr.Transferred())
		}
	})
}
