// Package generatetest provides a deterministic in-process sampler for tests.
package generatetest

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/vamp-go/vamp-go/internal/generate"
	"github.com/vamp-go/vamp-go/internal/tokens"
)

// Sampler fills masked positions with tokens drawn from a generator seeded by
// the request seed, so equal requests produce equal grids.
type Sampler struct {
	Vocab int

	// Remask, when set, is applied to the realized mask the sampler reports.
	Remask func(m *tokens.Mask) *tokens.Mask

	mu    sync.Mutex
	calls []generate.Request
}

// Generate implements generate.Sampler.
func (s *Sampler) Generate(ctx context.Context, req generate.Request) (generate.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return generate.Result{}, err
	}

	vocab := s.Vocab
	if vocab <= 0 {
		vocab = 1024
	}

	seed := uint64(req.Config.Seed)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	b := tokens.NewBuilder(req.Tokens)
	shape := req.Tokens.Shape()
	for c := 0; c < shape.Codebooks; c++ {
		for t := 0; t < shape.Steps; t++ {
			if req.Mask.At(c, t) {
				b.Set(c, t, rng.IntN(vocab))
			}
		}
	}

	realized := req.Mask
	if s.Remask != nil {
		realized = s.Remask(req.Mask)
	}
	return generate.Result{Tokens: b.Grid(), Mask: realized}, nil
}

// Calls returns the requests seen so far.
func (s *Sampler) Calls() []generate.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]generate.Request(nil), s.calls...)
}

// Sequential returns a grid whose token at (c, t) is c*1000 + t.
func Sequential(codebooks, steps int) *tokens.Grid {
	rows := make([][]int, codebooks)
	for c := range rows {
		rows[c] = make([]int, steps)
		for t := range rows[c] {
			rows[c][t] = c*1000 + t
		}
	}
	g, _ := tokens.FromRows(rows)
	return g
}
