// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"sort"

	"github.com/abdes/oxygen/gpucore"
)

// coalesceRegions sorts copy regions by (destination buffer, destination
// offset) and fuses runs that are contiguous in both the destination and
// the source into single regions. The input slice is reordered in place;
// the returned slice aliases it.
func coalesceRegions(regions []gpucore.BufferCopy) []gpucore.BufferCopy {
	if len(regions) < 2 {
		return regions
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Dst != regions[j].Dst {
			return regions[i].Dst < regions[j].Dst
		}
		return regions[i].DstOffset < regions[j].DstOffset
	})

	out := regions[:1]
	for _, r := range regions[1:] {
		last := &out[len(out)-1]
		if r.Dst == last.Dst && r.Src == last.Src &&
			last.DstOffset+last.SizeBytes == r.DstOffset &&
			last.SrcOffset+last.SizeBytes == r.SrcOffset {
			last.SizeBytes += r.SizeBytes
			continue
		}
		out = append(out, r)
	}
	return out
}
