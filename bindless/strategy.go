// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/abdes/oxygen/gpucore"
)

// MaxHeapCapacity bounds a single heap segment's configured capacity.
const MaxHeapCapacity = 1 << 20

// Strategy configuration errors share this sentinel; use errors.Is to
// classify and the wrapped message for the offending key.
var ErrConfig = fmt.Errorf("bindless: invalid heap strategy")

// HeapDescription is the configured shape of one (heap-type, visibility)
// segment.
type HeapDescription struct {
	ShaderVisible       bool    `json:"shader_visible"`
	Capacity            uint32  `json:"capacity"`
	BaseIndex           uint32  `json:"base_index"`
	AllowGrowth         bool    `json:"allow_growth"`
	GrowthFactor        float64 `json:"growth_factor"`
	MaxGrowthIterations uint32  `json:"max_growth_iterations"`
}

// MaxProjectedCapacity returns the capacity the segment can reach after
// exhausting its growth budget. Growth multiplies by GrowthFactor with
// ceiling rounding, MaxGrowthIterations times. The shader-visible index
// space reserves this amount up front so indices never move.
func (d HeapDescription) MaxProjectedCapacity() uint32 {
	if !d.AllowGrowth || d.GrowthFactor <= 1 || d.MaxGrowthIterations == 0 {
		return d.Capacity
	}
	cap64 := uint64(d.Capacity)
	for i := uint32(0); i < d.MaxGrowthIterations; i++ {
		grown := uint64(float64(cap64)*d.GrowthFactor + 0.9999999)
		if grown <= cap64 {
			grown = cap64 + 1
		}
		cap64 = grown
		if cap64 > MaxHeapCapacity {
			cap64 = MaxHeapCapacity
			break
		}
	}
	return uint32(cap64)
}

// HeapStrategy is the immutable allocator configuration: a mapping from
// canonical heap keys ("TYPE:cpu" | "TYPE:gpu") to heap descriptions.
//
// A HeapStrategy is validated at load time and never mutated afterward,
// so it is safe for concurrent use.
type HeapStrategy struct {
	heaps map[string]HeapDescription
}

// strategyFile is the on-disk JSON shape.
type strategyFile struct {
	Heaps map[string]HeapDescription `json:"heaps"`
}

//go:embed default_strategy.json
var defaultStrategyJSON []byte

// LoadDefaultStrategy loads the embedded default heap strategy.
func LoadDefaultStrategy() (*HeapStrategy, error) {
	return LoadStrategy(bytes.NewReader(defaultStrategyJSON))
}

// LoadStrategy parses and validates a heap strategy document.
//
// Validation failures wrap [ErrConfig] and name the offending key:
// malformed keys, RTV/DSV marked shader-visible, capacity outside
// [0, MaxHeapCapacity], visibility disagreeing with the key suffix, and
// any two ranges [base, base+maxProjectedCapacity) overlapping.
func LoadStrategy(r io.Reader) (*HeapStrategy, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var file strategyFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(file.Heaps) == 0 {
		return nil, fmt.Errorf("%w: no heaps configured", ErrConfig)
	}
	for key, d := range file.Heaps {
		heapType, vis, err := parseHeapKey(key)
		if err != nil {
			return nil, err
		}
		if d.Capacity > MaxHeapCapacity {
			return nil, fmt.Errorf("%w: %q capacity %d exceeds %d", ErrConfig, key, d.Capacity, MaxHeapCapacity)
		}
		if d.ShaderVisible != (vis == gpucore.ShaderVisible) {
			return nil, fmt.Errorf("%w: %q shader_visible field disagrees with key", ErrConfig, key)
		}
		if vis == gpucore.ShaderVisible && (heapType == gpucore.HeapRtv || heapType == gpucore.HeapDsv) {
			return nil, fmt.Errorf("%w: %q: %s heaps cannot be shader-visible", ErrConfig, key, heapType)
		}
		if d.AllowGrowth && d.GrowthFactor <= 1 {
			return nil, fmt.Errorf("%w: %q growth_factor must exceed 1", ErrConfig, key)
		}
	}
	if err := checkRangeOverlap(file.Heaps); err != nil {
		return nil, err
	}
	return &HeapStrategy{heaps: file.Heaps}, nil
}

// checkRangeOverlap rejects any pair of heap ranges whose projected
// index ranges intersect.
func checkRangeOverlap(heaps map[string]HeapDescription) error {
	type span struct {
		key        string
		begin, end uint64
	}
	spans := make([]span, 0, len(heaps))
	for key, d := range heaps {
		spans = append(spans, span{key, uint64(d.BaseIndex), uint64(d.BaseIndex) + uint64(d.MaxProjectedCapacity())})
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].begin != spans[j].begin {
			return spans[i].begin < spans[j].begin
		}
		return spans[i].key < spans[j].key
	})
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if cur.begin < prev.end && prev.begin != prev.end && cur.begin != cur.end {
			return fmt.Errorf("%w: ranges of %q and %q overlap", ErrConfig, prev.key, cur.key)
		}
	}
	return nil
}

// parseHeapKey validates the canonical "TYPE:{cpu|gpu}" form.
func parseHeapKey(key string) (gpucore.HeapType, gpucore.Visibility, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: malformed key %q", ErrConfig, key)
	}
	var heapType gpucore.HeapType
	switch parts[0] {
	case "CBV_SRV_UAV":
		heapType = gpucore.HeapCbvSrvUav
	case "SAMPLER":
		heapType = gpucore.HeapSampler
	case "RTV":
		heapType = gpucore.HeapRtv
	case "DSV":
		heapType = gpucore.HeapDsv
	default:
		return 0, 0, fmt.Errorf("%w: unknown heap type in key %q", ErrConfig, key)
	}
	switch parts[1] {
	case "cpu":
		return heapType, gpucore.CPUOnly, nil
	case "gpu":
		return heapType, gpucore.ShaderVisible, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown visibility in key %q", ErrConfig, key)
	}
}

// HeapKey returns the canonical heap key for a view request, rejecting
// invalid combinations: RTV/DSV views cannot be shader-visible, and
// only CBV/SRV/UAV and SAMPLER heaps may be shader-visible.
func (s *HeapStrategy) HeapKey(viewType gpucore.ViewType, vis gpucore.Visibility) (string, error) {
	heapType := viewType.HeapFor()
	if vis == gpucore.ShaderVisible && (heapType == gpucore.HeapRtv || heapType == gpucore.HeapDsv) {
		return "", fmt.Errorf("%w: %s views cannot be shader-visible", ErrConfig, heapType)
	}
	return heapType.String() + ":" + vis.String(), nil
}

// HeapDescription returns the configured description for a canonical
// heap key.
func (s *HeapStrategy) HeapDescription(key string) (HeapDescription, error) {
	d, ok := s.heaps[key]
	if !ok {
		return HeapDescription{}, fmt.Errorf("%w: heap %q not configured", ErrConfig, key)
	}
	return d, nil
}

// HeapBaseIndex returns the absolute base index used to form
// shader-visible indices for the given view request.
func (s *HeapStrategy) HeapBaseIndex(viewType gpucore.ViewType, vis gpucore.Visibility) (uint32, error) {
	key, err := s.HeapKey(viewType, vis)
	if err != nil {
		return 0, err
	}
	d, err := s.HeapDescription(key)
	if err != nil {
		return 0, err
	}
	return d.BaseIndex, nil
}

// Keys returns the configured heap keys in sorted order.
func (s *HeapStrategy) Keys() []string {
	keys := make([]string, 0, len(s.heaps))
	for k := range s.heaps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
