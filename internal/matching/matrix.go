package matching

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Matrix is a dense symmetric table of pairwise compatibility scores
type Matrix struct {
	n      int
	scores []float64
}

// At returns the score between participants i and j
func (m *Matrix) At(i, j int) float64 {
	return m.scores[i*m.n+j]
}

// Size returns the number of participants covered
func (m *Matrix) Size() int {
	return m.n
}

// BuildMatrix scores every pair concurrently. Rows are independent, so each worker
// owns row i and its mirrored column cells for j > i.
func BuildMatrix(ctx context.Context, scorer *Scorer, traits []Traits, workers int) (*Matrix, error) {
	n := len(traits)
	m := &Matrix{n: n, scores: make([]float64, n*n)}
	if n == 0 {
		return m, nil
	}
	if workers <= 0 {
		workers = defaultMatrixConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m.scores[i*n+i] = scoreMax
			for j := i + 1; j < n; j++ {
				s := scorer.Score(traits[i], traits[j])
				m.scores[i*n+j] = s
				m.scores[j*n+i] = s
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}
