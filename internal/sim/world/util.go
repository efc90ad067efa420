package world

import "sort"

func sortVecs(vs []Vec3i) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].less(vs[j]) })
}

func clampLevel(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxSignal {
		return MaxSignal
	}
	return v
}
