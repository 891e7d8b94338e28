// Package progress carries one-way upload progress notifications. Senders
// never block: when the buffer is full the update is dropped.
package progress

import (
	"context"
	"io"
	"sync"

	"github.com/dmitrijs2005/cloudvault/internal/logging"
	"github.com/dmitrijs2005/cloudvault/internal/server/metrics"
)

// Update reports bytes transferred so far for one upload.
type Update struct {
	UploadID string `json:"uploadId"`
	UserID   string `json:"userId"`
	FileName string `json:"fileName"`
	Bytes    int64  `json:"bytes"`
	Total    int64  `json:"total"`
	Done     bool   `json:"done"`
}

// Sink receives updates. Notify must return immediately.
type Sink interface {
	Notify(u Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

func (f SinkFunc) Notify(u Update) { f(u) }

// Discard is the no-op Sink.
var Discard Sink = SinkFunc(func(Update) {})

// Publisher forwards updates to an out-of-process channel.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

// Relay buffers updates and forwards them to a Publisher from a single
// goroutine started by Run.
type Relay struct {
	updates chan Update
	pub     Publisher
	logger  logging.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var _ Sink = (*Relay)(nil)

func NewRelay(pub Publisher, buffer int, logger logging.Logger) *Relay {
	if buffer <= 0 {
		buffer = 256
	}
	return &Relay{
		updates: make(chan Update, buffer),
		pub:     pub,
		logger:  logger.With("module", "progress"),
		done:    make(chan struct{}),
	}
}

// Notify enqueues u or drops it when the buffer is full.
func (r *Relay) Notify(u Update) {
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.updates <- u:
	default:
		metrics.ProgressDropped.Inc()
	}
}

// Run forwards updates until ctx is cancelled or Close is called.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case u := <-r.updates:
			if err := r.pub.Publish(ctx, u); err != nil {
				r.logger.Debug(ctx, "progress publish failed", "upload_id", u.UploadID, "error", err)
			}
		}
	}
}

// Close stops Run and makes later Notify calls no-ops.
func (r *Relay) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Reader reports progress to a Sink as the wrapped reader is consumed.
type Reader struct {
	r    io.Reader
	sink Sink
	base Update
	read int64
}

// NewReader wraps r. base carries the upload identity and total size.
func NewReader(r io.Reader, sink Sink, base Update) *Reader {
	if sink == nil {
		sink = Discard
	}
	return &Reader{r: r, sink: sink, base: base}
}

func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		u := p.base
		u.Bytes = p.read
		u.Done = p.base.Total > 0 && p.read >= p.base.Total
		p.sink.Notify(u)
	}
	return n, err
}
