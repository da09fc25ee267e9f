// Package engine implements the damped fixed-point trust propagation over the
// confirmed vouching graph. It is pure: no storage, no clock, no logging.
package engine

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/sync/errgroup"
)

// Node is an account participating in the ranking. CreatedAt breaks score
// ties so identical inputs always produce identical rankings.
type Node struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// Edge is an undirected confirmed vouching relationship. Weight is the
// sender-side trust allocation in ledger units.
type Edge struct {
	A, B   snowflake.ID
	Weight float64
}

type Config struct {
	// Damping is the retention factor d in (0,1); 1-d is the teleport mass
	// that keeps disconnected components and isolated accounts reachable.
	Damping   float64
	Tolerance float64
	MaxIters  int
	// Parallelism bounds the per-iteration fan-out. Zero means GOMAXPROCS.
	Parallelism int
}

// Ranked is one row of the final ordering.
type Ranked struct {
	ID    snowflake.ID
	Score float64
	Rank  int
}

type Result struct {
	// Ranked is ordered best first; scores are normalized to sum to 1.
	Ranked     []Ranked
	Iterations int
	Converged  bool
}

var (
	ErrNegativeWeight = errors.New("negative edge weight")
	ErrUnknownNode    = errors.New("edge references unknown node")
)

// Run executes the propagation until the L1 distance between successive score
// vectors drops below the tolerance or the iteration cap is hit. Hitting the
// cap is reported via Converged=false, not as an error.
func Run(ctx context.Context, nodes []Node, edges []Edge, cfg Config) (Result, error) {
	n := len(nodes)
	if n == 0 {
		return Result{Converged: true}, nil
	}

	index := make(map[snowflake.ID]int, n)
	for i, node := range nodes {
		index[node.ID] = i
	}

	type neighbor struct {
		idx    int
		weight float64
	}
	adjacency := make([][]neighbor, n)
	totalWeight := make([]float64, n)
	for _, edge := range edges {
		if edge.Weight < 0 {
			return Result{}, ErrNegativeWeight
		}
		ai, ok := index[edge.A]
		if !ok {
			return Result{}, ErrUnknownNode
		}
		bi, ok := index[edge.B]
		if !ok {
			return Result{}, ErrUnknownNode
		}
		if edge.Weight == 0 {
			continue
		}
		adjacency[ai] = append(adjacency[ai], neighbor{idx: bi, weight: edge.Weight})
		adjacency[bi] = append(adjacency[bi], neighbor{idx: ai, weight: edge.Weight})
		totalWeight[ai] += edge.Weight
		totalWeight[bi] += edge.Weight
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	prev := make([]float64, n)
	next := make([]float64, n)
	for i := range prev {
		prev[i] = 1.0 / float64(n)
	}

	teleport := (1.0 - cfg.Damping) / float64(n)
	iterations := 0
	converged := false

	for iterations < cfg.MaxIters {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		iterations++

		// Score mass held by nodes with no confirmed edges cannot flow along
		// the graph; it is redistributed uniformly so the vector keeps
		// summing to 1.
		dangling := 0.0
		for i := range prev {
			if totalWeight[i] == 0 {
				dangling += prev[i]
			}
		}
		danglingShare := cfg.Damping * dangling / float64(n)

		// Each worker writes a disjoint slice of next and reads only prev.
		grp, _ := errgroup.WithContext(ctx)
		grp.SetLimit(parallelism)
		chunk := (n + parallelism - 1) / parallelism
		for start := 0; start < n; start += chunk {
			end := start + chunk
			if end > n {
				end = n
			}
			grp.Go(func() error {
				for u := start; u < end; u++ {
					sum := 0.0
					for _, nb := range adjacency[u] {
						sum += nb.weight / totalWeight[nb.idx] * prev[nb.idx]
					}
					next[u] = teleport + danglingShare + cfg.Damping*sum
				}
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return Result{}, err
		}

		diff := 0.0
		for i := range next {
			diff += math.Abs(next[i] - prev[i])
		}
		prev, next = next, prev
		if diff < cfg.Tolerance {
			converged = true
			break
		}
	}

	// Normalize; numerical drift aside the vector already sums to ~1.
	sum := 0.0
	for _, v := range prev {
		sum += v
	}
	if sum > 0 {
		for i := range prev {
			prev[i] /= sum
		}
	}

	ranked := make([]Ranked, n)
	for i := range nodes {
		ranked[i] = Ranked{ID: nodes[i].ID, Score: prev[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		ni, nj := nodes[index[ranked[i].ID]], nodes[index[ranked[j].ID]]
		if !ni.CreatedAt.Equal(nj.CreatedAt) {
			return ni.CreatedAt.Before(nj.CreatedAt)
		}
		return ni.ID < nj.ID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return Result{Ranked: ranked, Iterations: iterations, Converged: converged}, nil
}
