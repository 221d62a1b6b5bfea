// Package pagerank computes link-graph authority scores and runs the
// periodic ranking job.
package pagerank

import "sort"

// Result holds the computed score and link counts for one URL.
type Result struct {
	Score    float64
	Inbound  int
	Outbound int
}

// Compute runs the power iteration over a link graph given as an
// adjacency list of source to targets. Every URL appearing as a source
// or a target becomes a node. Dangling nodes spread their mass uniformly
// across the graph; the returned scores are normalized to sum to one.
func Compute(links map[string][]string, damping, tolerance float64, maxIterations int) map[string]Result {
	nodes := collectNodes(links)
	n := len(nodes)
	if n == 0 {
		return map[string]Result{}
	}

	// Deduplicated outbound sets; self-links carry no weight.
	out := make(map[string][]string, len(links))
	inbound := make(map[string]int, n)
	for src, targets := range links {
		seen := make(map[string]bool, len(targets))
		for _, tgt := range targets {
			if tgt == src || seen[tgt] {
				continue
			}
			seen[tgt] = true
			out[src] = append(out[src], tgt)
			inbound[tgt]++
		}
	}

	rank := make(map[string]float64, n)
	for _, node := range nodes {
		rank[node] = 1.0 / float64(n)
	}

	base := (1 - damping) / float64(n)
	for iter := 0; iter < maxIterations; iter++ {
		var dangling float64
		for _, node := range nodes {
			if len(out[node]) == 0 {
				dangling += rank[node]
			}
		}

		next := make(map[string]float64, n)
		for _, node := range nodes {
			next[node] = base + damping*dangling/float64(n)
		}
		for src, targets := range out {
			share := rank[src] / float64(len(targets))
			for _, tgt := range targets {
				next[tgt] += damping * share
			}
		}

		var delta float64
		for _, node := range nodes {
			d := next[node] - rank[node]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		rank = next
		if delta < tolerance {
			break
		}
	}

	// Numerical drift from the dangling redistribution accumulates over
	// iterations; a final normalization restores the unit sum.
	var total float64
	for _, score := range rank {
		total += score
	}
	results := make(map[string]Result, n)
	for _, node := range nodes {
		results[node] = Result{
			Score:    rank[node] / total,
			Inbound:  inbound[node],
			Outbound: len(out[node]),
		}
	}
	return results
}

func collectNodes(links map[string][]string) []string {
	set := make(map[string]bool)
	for src, targets := range links {
		set[src] = true
		for _, tgt := range targets {
			set[tgt] = true
		}
	}
	nodes := make([]string, 0, len(set))
	for node := range set {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}
