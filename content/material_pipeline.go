// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"context"
	"encoding/json"
	"fmt"
)

// MaterialDomainName is the authored blend domain of a material.
type MaterialDomainName string

const (
	MaterialOpaque  MaterialDomainName = "opaque"
	MaterialMasked  MaterialDomainName = "masked"
	MaterialBlended MaterialDomainName = "blended"
)

// MaterialSource is the authored material description. Texture fields
// are virtual paths into the cooked store; empty paths mean unused.
type MaterialSource struct {
	Domain            MaterialDomainName `json:"domain"`
	AlphaCutoff       float32            `json:"alpha_cutoff,omitempty"`
	BaseColorFactor   [4]float32         `json:"base_color_factor"`
	BaseColor         string             `json:"base_color,omitempty"`
	Normal            string             `json:"normal,omitempty"`
	MetallicRoughness string             `json:"metallic_roughness,omitempty"`
	Occlusion         string             `json:"occlusion,omitempty"`
	Emissive          string             `json:"emissive,omitempty"`
}

// TextureResolver maps a virtual texture path to its cooked asset key.
type TextureResolver func(virtualPath string) (AssetKey, bool)

// CookedMaterialPayload is the cooked material descriptor with every
// texture reference resolved to an asset key.
type CookedMaterialPayload struct {
	Domain            MaterialDomainName `json:"domain"`
	AlphaCutoff       float32            `json:"alpha_cutoff"`
	BaseColorFactor   [4]float32         `json:"base_color_factor"`
	BaseColor         AssetKey           `json:"base_color"`
	Normal            AssetKey           `json:"normal"`
	MetallicRoughness AssetKey           `json:"metallic_roughness"`
	Occlusion         AssetKey           `json:"occlusion"`
	Emissive          AssetKey           `json:"emissive"`
}

// Encode serializes the descriptor for the loose-cooked index.
func (p *CookedMaterialPayload) Encode() []byte {
	data, _ := json.Marshal(p)
	return data
}

// MaterialJob is the input payload of the material pipeline.
type MaterialJob struct {
	Source  MaterialSource
	Resolve TextureResolver
}

// MaterialPipeline cooks material jobs concurrently.
type MaterialPipeline = Pipeline[MaterialJob, *CookedMaterialPayload]

// NewMaterialPipeline builds the bounded material cooking stage.
func NewMaterialPipeline(workers, capacity int) *MaterialPipeline {
	return NewPipeline[MaterialJob, *CookedMaterialPayload](workers, capacity, cookMaterialItem)
}

func cookMaterialItem(ctx context.Context, item WorkItem[MaterialJob]) WorkResult[*CookedMaterialPayload] {
	payload, diags, err := CookMaterial(item.Name, item.Payload.Source, item.Payload.Resolve)
	if err != nil {
		return WorkResult[*CookedMaterialPayload]{
			Name: item.Name,
			Diagnostics: append(diags,
				diagf(SeverityError, CodeManifestInvalid, item.Name, "material cook failed: %v", err)),
		}
	}
	return WorkResult[*CookedMaterialPayload]{
		Name:        item.Name,
		Success:     true,
		Payload:     payload,
		Diagnostics: diags,
	}
}

// CookMaterial resolves every texture reference to an asset key.
// Unresolved references cook to the invalid key and attach a warning so
// the renderer falls back to its error texture at bind time.
func CookMaterial(name string, src MaterialSource, resolve TextureResolver) (*CookedMaterialPayload, []ImportDiagnostic, error) {
	switch src.Domain {
	case MaterialOpaque, MaterialMasked, MaterialBlended:
	case "":
		src.Domain = MaterialOpaque
	default:
		return nil, nil, fmt.Errorf("content: unknown material domain %q", src.Domain)
	}

	var diags []ImportDiagnostic
	resolveRef := func(field, path string) AssetKey {
		if path == "" {
			return InvalidAssetKey
		}
		if resolve != nil {
			if key, ok := resolve(path); ok {
				return key
			}
		}
		diags = append(diags, diagf(SeverityWarning, CodeMaterialUnresolvedTexture, name,
			"%s texture %q did not resolve to a cooked asset", field, path))
		return InvalidAssetKey
	}

	return &CookedMaterialPayload{
		Domain:            src.Domain,
		AlphaCutoff:       src.AlphaCutoff,
		BaseColorFactor:   src.BaseColorFactor,
		BaseColor:         resolveRef("base_color", src.BaseColor),
		Normal:            resolveRef("normal", src.Normal),
		MetallicRoughness: resolveRef("metallic_roughness", src.MetallicRoughness),
		Occlusion:         resolveRef("occlusion", src.Occlusion),
		Emissive:          resolveRef("emissive", src.Emissive),
	}, diags, nil
}
