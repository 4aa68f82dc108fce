package resource

import (
	"context"
	"io"
)

// LimitedWriter charges every write against the controller's IO budget.
type LimitedWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

// NewLimitedWriter wraps w. A nil controller disables limiting.
func NewLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *LimitedWriter {
	return &LimitedWriter{ctx: ctx, w: w, rc: rc}
}

func (w *LimitedWriter) Write(p []byte) (int, error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// LimitedReader charges the bytes actually read against the IO budget.
type LimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewLimitedReader wraps r. A nil controller disables limiting.
func NewLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *LimitedReader {
	return &LimitedReader{ctx: ctx, r: r, rc: rc}
}

func (r *LimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.rc.AcquireIO(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
