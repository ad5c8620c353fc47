package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/born-ml/nnue/internal/chess"
)

// PrefetchConfig controls background batch packing.
type PrefetchConfig struct {
	BatchSize int
	QueueSize int // Batches packed ahead of the consumer
	Policy    chess.Policy
}

// Prefetcher packs batches from a Source on a background goroutine. Batches
// are drawn from a fixed free list, so the consumer must Recycle each batch
// once it is done with it.
type Prefetcher struct {
	src    Source
	input  chess.Chess768
	policy chess.Policy

	ready  chan *Batch
	free   chan *Batch
	errc   chan error
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPrefetcher starts packing. Cancelling ctx or calling Close stops the worker.
func NewPrefetcher(ctx context.Context, src Source, cfg PrefetchConfig) (*Prefetcher, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("data: batch size %d", cfg.BatchSize)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Policy == nil {
		cfg.Policy = chess.Single{}
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Prefetcher{
		src:    src,
		policy: cfg.Policy,
		ready:  make(chan *Batch, cfg.QueueSize),
		free:   make(chan *Batch, cfg.QueueSize+1),
		errc:   make(chan error, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.QueueSize+1; i++ {
		p.free <- NewBatch(cfg.BatchSize, p.input.MaxActive())
	}

	p.wg.Add(1)
	go p.run(ctx)
	return p, nil
}

func (p *Prefetcher) run(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.ready)

	for {
		var b *Batch
		select {
		case <-ctx.Done():
			return
		case b = <-p.free:
		}

		b.Reset()
		var srcErr error
		for b.Size < b.Capacity() {
			s, err := p.src.Next()
			if err != nil {
				srcErr = err
				break
			}
			if err := b.Add(s, p.input, p.policy); err != nil {
				srcErr = err
				break
			}
		}

		if b.Size > 0 {
			select {
			case <-ctx.Done():
				return
			case p.ready <- b:
			}
		}
		if srcErr != nil {
			if !errors.Is(srcErr, io.EOF) {
				p.errc <- srcErr
			}
			return
		}
	}
}

// Next blocks until a batch is ready. It returns io.EOF once a finite source
// is drained and every packed batch has been handed out, and the context error
// once the prefetcher is cancelled or closed.
func (p *Prefetcher) Next(ctx context.Context) (*Batch, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b, ok := <-p.ready:
		if ok {
			return b, nil
		}
	}
	select {
	case err := <-p.errc:
		return nil, fmt.Errorf("data: prefetch: %w", err)
	default:
	}
	if err := p.ctx.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Recycle returns a batch to the free list.
func (p *Prefetcher) Recycle(b *Batch) {
	select {
	case p.free <- b:
	default:
	}
}

// Close stops the worker and waits for it to exit.
func (p *Prefetcher) Close() {
	p.cancel()
	p.wg.Wait()
}
