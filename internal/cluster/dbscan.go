package cluster

import (
	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/vector"
)

// Noise is the DBSCAN label for points that belong to no cluster. With
// minSamples = 1 every point seeds its own cluster, so noise never appears in
// the reclustering pass; the constant exists for callers that run with
// stricter parameters.
const Noise = -1

// DBSCAN clusters points by cosine distance and returns a cluster label per
// point, parallel to the input. Labels start at 0; unclustered points get
// Noise. Points within eps of each other chain into one cluster, so the
// effective cluster radius can exceed eps.
func DBSCAN(points [][]float32, eps float64, minSamples int) []int {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = Noise
	}
	if len(points) == 0 {
		return labels
	}
	if minSamples < 1 {
		minSamples = 1
	}

	neighbors := func(i int) []int {
		var ns []int
		for j := range points {
			if vector.CosineDistance(points[i], points[j]) <= eps {
				ns = append(ns, j)
			}
		}
		return ns
	}

	visited := make([]bool, len(points))
	cluster := 0

	for i := range points {
		if visited[i] {
			continue
		}
		visited[i] = true

		ns := neighbors(i)
		if len(ns) < minSamples {
			continue // noise, may still be absorbed by a later cluster
		}

		labels[i] = cluster
		// Expand the cluster by walking the seed set.
		for k := 0; k < len(ns); k++ {
			j := ns[k]
			if labels[j] == Noise {
				labels[j] = cluster
			}
			if visited[j] {
				continue
			}
			visited[j] = true
			more := neighbors(j)
			if len(more) >= minSamples {
				ns = append(ns, more...)
			}
		}
		cluster++
	}

	return labels
}

// GroupIdentities runs DBSCAN over the identities' centroids and returns
// groups of identity IDs sharing a cluster, preserving input order within
// each group. With fewer than two identities the pass is a no-op and returns
// nil. Noise points are dropped.
func GroupIdentities(identities []database.Identity, eps float64) [][]string {
	if len(identities) < 2 {
		return nil
	}

	points := make([][]float32, len(identities))
	for i := range identities {
		points[i] = identities[i].Centroid
	}

	labels := DBSCAN(points, eps, 1)

	byLabel := make(map[int][]string)
	var order []int
	for i, label := range labels {
		if label == Noise {
			continue
		}
		if _, seen := byLabel[label]; !seen {
			order = append(order, label)
		}
		byLabel[label] = append(byLabel[label], identities[i].ID)
	}

	groups := make([][]string, 0, len(order))
	for _, label := range order {
		groups = append(groups, byLabel[label])
	}
	return groups
}
