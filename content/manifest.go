// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"encoding/json"
	"fmt"
	"io"
)

// ManifestVersion is the only manifest schema revision we accept.
const ManifestVersion = 1

// ManifestDefaults applies to every job that leaves a field unset.
type ManifestDefaults struct {
	PackingPolicy *uint32 `json:"packing_policy,omitempty"`
	Quality       string  `json:"quality,omitempty"`
	MipFilter     string  `json:"mip_filter,omitempty"`
	OnFailure     string  `json:"on_failure,omitempty"`
}

// ManifestJob is one import request inside a manifest.
type ManifestJob struct {
	Type        string  `json:"type"`
	Source      string  `json:"source"`
	VirtualPath string  `json:"virtual_path"`
	Format      string  `json:"format,omitempty"`
	Stride      uint32  `json:"stride,omitempty"`
	NormalMap   bool    `json:"normal_map,omitempty"`
	InvertGreen bool    `json:"invert_green,omitempty"`
	ExposureEV  float32 `json:"exposure_ev,omitempty"`
	Cube        bool    `json:"cube,omitempty"`

	PackingPolicy *uint32 `json:"packing_policy,omitempty"`
	Quality       string  `json:"quality,omitempty"`
	MipFilter     string  `json:"mip_filter,omitempty"`
	OnFailure     string  `json:"on_failure,omitempty"`
}

// Manifest is the batch import description consumed by the cooker.
type Manifest struct {
	Version  uint32           `json:"version"`
	Defaults ManifestDefaults `json:"defaults"`
	Jobs     []ManifestJob    `json:"jobs"`
}

var manifestJobTypes = map[string]bool{
	"texture":  true,
	"buffer":   true,
	"geometry": true,
	"material": true,
	"scene":    true,
}

var manifestQualities = map[string]bool{"": true, "fast": true, "balanced": true, "high": true}
var manifestFilters = map[string]bool{"": true, "box": true, "kaiser": true, "lanczos": true}
var manifestFailures = map[string]bool{"": true, "error": true, "placeholder": true}

// ParseManifest decodes and validates a manifest. Every validation
// problem is written to errOut as one descriptive line; the first
// problem is also returned.
func ParseManifest(data []byte, errOut io.Writer) (*Manifest, error) {
	if errOut == nil {
		errOut = io.Discard
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		fmt.Fprintf(errOut, "manifest: not valid JSON: %v\n", err)
		return nil, fmt.Errorf("content: manifest is not valid JSON: %w", err)
	}

	var firstErr error
	report := func(format string, args ...any) {
		fmt.Fprintf(errOut, "manifest: "+format+"\n", args...)
		if firstErr == nil {
			firstErr = fmt.Errorf("content: "+format, args...)
		}
	}

	if m.Version != ManifestVersion {
		report("unsupported version %d, expected %d", m.Version, ManifestVersion)
	}
	if len(m.Jobs) == 0 {
		report("no jobs")
	}
	validateChoices(report, "defaults", m.Defaults.Quality, m.Defaults.MipFilter, m.Defaults.OnFailure)
	for i, job := range m.Jobs {
		where := fmt.Sprintf("job %d", i)
		if job.VirtualPath != "" {
			where = fmt.Sprintf("job %d (%s)", i, job.VirtualPath)
		}
		if !manifestJobTypes[job.Type] {
			report("%s: unknown type %q", where, job.Type)
		}
		if job.Source == "" {
			report("%s: missing source", where)
		}
		if job.VirtualPath == "" {
			report("%s: missing virtual_path", where)
		}
		if job.Type == "buffer" && job.Stride%4 != 0 {
			report("%s: stride %d is not a multiple of 4", where, job.Stride)
		}
		validateChoices(report, where, job.Quality, job.MipFilter, job.OnFailure)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return &m, nil
}

func validateChoices(report func(string, ...any), where, quality, filter, failure string) {
	if !manifestQualities[quality] {
		report("%s: unknown quality %q", where, quality)
	}
	if !manifestFilters[filter] {
		report("%s: unknown mip_filter %q", where, filter)
	}
	if !manifestFailures[failure] {
		report("%s: unknown on_failure %q", where, failure)
	}
}

// JobSettings merges a job with the manifest defaults into concrete
// texture import settings.
func (m *Manifest) JobSettings(job *ManifestJob) TextureImportSettings {
	s := TextureImportSettings{
		GenerateMips: true,
		NormalMap:    job.NormalMap,
		InvertGreen:  job.InvertGreen,
		ExposureEV:   job.ExposureEV,
	}
	if job.Cube {
		s.Type = TextureCube
	}
	policy := m.Defaults.PackingPolicy
	if job.PackingPolicy != nil {
		policy = job.PackingPolicy
	}
	if policy != nil {
		s.PackingPolicy = PackingPolicyID(*policy)
	}
	s.Quality = parseQuality(pick(job.Quality, m.Defaults.Quality))
	s.MipFilter = parseMipFilter(pick(job.MipFilter, m.Defaults.MipFilter))
	if pick(job.OnFailure, m.Defaults.OnFailure) == "placeholder" {
		s.OnFailure = FailurePlaceholder
	}
	switch job.Format {
	case "rgba8":
		s.OutputFormat = FormatRGBA8Unorm
	case "rgba8_srgb":
		s.OutputFormat = FormatRGBA8UnormSrgb
	case "rgba16f":
		s.OutputFormat = FormatRGBA16Float
	case "rgba32f":
		s.OutputFormat = FormatRGBA32Float
	case "bc7":
		s.OutputFormat = FormatBC7Unorm
	case "bc7_srgb":
		s.OutputFormat = FormatBC7UnormSrgb
	default:
		s.OutputFormat = FormatRGBA8UnormSrgb
	}
	return s
}

func pick(job, def string) string {
	if job != "" {
		return job
	}
	return def
}

func parseQuality(s string) BC7Quality {
	switch s {
	case "fast":
		return BC7QualityFast
	case "high":
		return BC7QualityHigh
	}
	return BC7QualityBalanced
}

func parseMipFilter(s string) MipFilter {
	switch s {
	case "box":
		return FilterBox
	case "lanczos":
		return FilterLanczos
	}
	return FilterKaiser
}
