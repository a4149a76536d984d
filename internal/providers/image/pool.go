// Package image fans one generation round out into candidate slots.
package image

import (
	"context"
	"fmt"
	"sync"

	"eikona/internal/infra"
	"eikona/internal/providers/genai"
)

// Generator produces one edited candidate per call.
type Generator interface {
	EditImage(ctx context.Context, req genai.EditRequest) (*genai.EditResult, error)
}

// DefaultConcurrency bounds in-flight provider calls per round. Two keeps a
// four-candidate round fast without tripping per-key rate limits.
const DefaultConcurrency = 2

// Pool runs the candidate calls of a round. Each candidate has a fixed slot
// index; results are delivered to their slot as they finish, in any order.
type Pool struct {
	Gen         Generator
	Concurrency int
	Logger      *infra.Logger
}

// NewPool wires a pool around a generator.
func NewPool(gen Generator, concurrency int, logger *infra.Logger) *Pool {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Pool{Gen: gen, Concurrency: concurrency, Logger: logger}
}

// Run generates `slots` candidates and calls deliver once per slot. It blocks
// until the round is finished or ctx is cancelled; callers run it in a
// goroutine. deliver must be safe for concurrent use.
func (p *Pool) Run(ctx context.Context, req genai.EditRequest, slots int, deliver func(index int, res *genai.EditResult, err error)) {
	if slots < 1 {
		slots = 1
	}
	sem := make(chan struct{}, p.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < slots; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				deliver(index, nil, ctx.Err())
				return
			}

			slotReq := req
			slotReq.RequestID = fmt.Sprintf("%s-%d", req.RequestID, index)
			res, err := p.Gen.EditImage(ctx, slotReq)
			if err != nil && p.Logger != nil {
				p.Logger.Warn().
					Err(err).
					Int("slot", index).
					Str("request_id", slotReq.RequestID).
					Msg("image: candidate generation failed")
			}
			deliver(index, res, err)
		}(i)
	}
	wg.Wait()
}
