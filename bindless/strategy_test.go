// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"errors"
	"strings"
	"testing"

	"github.com/abdes/oxygen/gpucore"
)

func TestLoadDefaultStrategy(t *testing.T) {
	s, err := LoadDefaultStrategy()
	if err != nil {
		t.Fatalf("embedded default strategy failed to load: %v", err)
	}
	keys := s.Keys()
	want := []string{"CBV_SRV_UAV:cpu", "CBV_SRV_UAV:gpu", "DSV:cpu", "RTV:cpu", "SAMPLER:gpu"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d heaps, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("key %d: expected %q, got %q", i, k, keys[i])
		}
	}
}

func TestLoadStrategyValidation(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{
			"malformed key",
			`{"heaps": {"CBV_SRV_UAV": {"shader_visible": true, "capacity": 8, "base_index": 0}}}`,
		},
		{
			"unknown heap type",
			`{"heaps": {"UAV_ONLY:gpu": {"shader_visible": true, "capacity": 8, "base_index": 0}}}`,
		},
		{
			"unknown visibility",
			`{"heaps": {"CBV_SRV_UAV:vram": {"shader_visible": true, "capacity": 8, "base_index": 0}}}`,
		},
		{
			"shader-visible RTV",
			`{"heaps": {"RTV:gpu": {"shader_visible": true, "capacity": 8, "base_index": 0}}}`,
		},
		{
			"shader-visible DSV",
			`{"heaps": {"DSV:gpu": {"shader_visible": true, "capacity": 8, "base_index": 0}}}`,
		},
		{
			"visibility field disagrees with key",
			`{"heaps": {"CBV_SRV_UAV:gpu": {"shader_visible": false, "capacity": 8, "base_index": 0}}}`,
		},
		{
			"capacity over limit",
			`{"heaps": {"CBV_SRV_UAV:gpu": {"shader_visible": true, "capacity": 1048577, "base_index": 0}}}`,
		},
		{
			"overlapping ranges",
			`{"heaps": {
				"CBV_SRV_UAV:gpu": {"shader_visible": true, "capacity": 100, "base_index": 0},
				"SAMPLER:gpu": {"shader_visible": true, "capacity": 100, "base_index": 50}
			}}`,
		},
		{
			"growth overlaps neighbor",
			`{"heaps": {
				"CBV_SRV_UAV:gpu": {"shader_visible": true, "capacity": 64, "base_index": 0,
					"allow_growth": true, "growth_factor": 2.0, "max_growth_iterations": 2},
				"SAMPLER:gpu": {"shader_visible": true, "capacity": 16, "base_index": 128}
			}}`,
		},
		{
			"growth factor not above one",
			`{"heaps": {"CBV_SRV_UAV:gpu": {"shader_visible": true, "capacity": 8, "base_index": 0,
				"allow_growth": true, "growth_factor": 1.0, "max_growth_iterations": 1}}}`,
		},
		{
			"unknown field",
			`{"heaps": {"CBV_SRV_UAV:gpu": {"shader_visible": true, "capacity": 8, "base_index": 0, "colour": 3}}}`,
		},
		{"empty document", `{}`},
		{"not json", `heaps: yes`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadStrategy(strings.NewReader(tt.json))
			if err == nil {
				t.Fatal("expected load to fail")
			}
			if !errors.Is(err, ErrConfig) && tt.name != "not json" && tt.name != "unknown field" {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestHeapKeyRejectsInvalidCombos(t *testing.T) {
	s, _ := LoadDefaultStrategy()

	if _, err := s.HeapKey(gpucore.ViewRTV, gpucore.ShaderVisible); err == nil {
		t.Error("expected shader-visible RTV to be rejected")
	}
	if _, err := s.HeapKey(gpucore.ViewDSV, gpucore.ShaderVisible); err == nil {
		t.Error("expected shader-visible DSV to be rejected")
	}

	key, err := s.HeapKey(gpucore.ViewTexSRV, gpucore.ShaderVisible)
	if err != nil {
		t.Fatalf("HeapKey failed: %v", err)
	}
	if key != "CBV_SRV_UAV:gpu" {
		t.Errorf("expected CBV_SRV_UAV:gpu, got %q", key)
	}

	key, _ = s.HeapKey(gpucore.ViewSampler, gpucore.ShaderVisible)
	if key != "SAMPLER:gpu" {
		t.Errorf("expected SAMPLER:gpu, got %q", key)
	}
}

func TestHeapBaseIndex(t *testing.T) {
	s, _ := LoadDefaultStrategy()
	base, err := s.HeapBaseIndex(gpucore.ViewSampler, gpucore.ShaderVisible)
	if err != nil {
		t.Fatalf("HeapBaseIndex failed: %v", err)
	}
	if base != 131072 {
		t.Errorf("expected 131072, got %d", base)
	}
}

func TestMaxProjectedCapacity(t *testing.T) {
	tests := []struct {
		name string
		d    HeapDescription
		want uint32
	}{
		{"no growth", HeapDescription{Capacity: 100}, 100},
		{
			"doubling twice",
			HeapDescription{Capacity: 100, AllowGrowth: true, GrowthFactor: 2.0, MaxGrowthIterations: 2},
			400,
		},
		{
			"fractional factor ceils",
			HeapDescription{Capacity: 10, AllowGrowth: true, GrowthFactor: 1.5, MaxGrowthIterations: 1},
			15,
		},
		{
			"clamped at heap limit",
			HeapDescription{Capacity: MaxHeapCapacity, AllowGrowth: true, GrowthFactor: 4.0, MaxGrowthIterations: 8},
			MaxHeapCapacity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.MaxProjectedCapacity(); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
