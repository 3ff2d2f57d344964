package core

import "detection-bot/internal/core/types"

// Aggregate counts detections per class. Classes appear in the order they were
// first seen.
func Aggregate(detections []types.Detection) []types.ObjectCount {
	counts := make([]types.ObjectCount, 0)
	index := make(map[string]int)

	for _, d := range detections {
		if i, ok := index[d.Class]; ok {
			counts[i].Count++
			continue
		}
		index[d.Class] = len(counts)
		counts = append(counts, types.ObjectCount{Class: d.Class, Count: 1})
	}

	return counts
}
