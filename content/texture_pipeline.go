// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"context"
	"fmt"
)

// TextureType selects the cooked texture shape.
type TextureType uint8

const (
	Texture2D TextureType = iota
	TextureCube
)

// FailurePolicy decides what a pipeline emits when cooking fails.
type FailurePolicy uint8

const (
	// FailureError emits a failed result with no payload.
	FailureError FailurePolicy = iota
	// FailurePlaceholder emits a synthesized 1x1 texture so downstream
	// stages never stall on a missing asset.
	FailurePlaceholder
)

// TextureImportSettings steers one texture cook.
type TextureImportSettings struct {
	Type         TextureType
	OutputFormat PixelFormat
	// CubeEdge is the face edge length for equirectangular sources;
	// zero derives it from the source height.
	CubeEdge uint32

	GenerateMips bool
	MaxMipLevels uint32
	MipFilter    MipFilter

	NormalMap   bool
	InvertGreen bool

	// ExposureEV scales HDR radiance by 2^ev before tonemapping.
	ExposureEV float32

	PackingPolicy PackingPolicyID
	Quality       BC7Quality
	OnFailure     FailurePolicy
}

// TextureJob is the input payload of the texture pipeline.
type TextureJob struct {
	Source   []byte
	Settings TextureImportSettings
}

// TexturePipeline cooks texture jobs concurrently.
type TexturePipeline = Pipeline[TextureJob, *CookedTexturePayload]

// NewTexturePipeline builds the bounded texture cooking stage.
func NewTexturePipeline(workers, capacity int) *TexturePipeline {
	return NewPipeline[TextureJob, *CookedTexturePayload](workers, capacity, cookTextureItem)
}

func cookTextureItem(ctx context.Context, item WorkItem[TextureJob]) WorkResult[*CookedTexturePayload] {
	payload, diags, err := CookTexture(ctx, item.Name, item.Payload.Source, item.Payload.Settings)
	if err == nil {
		return WorkResult[*CookedTexturePayload]{
			Name:        item.Name,
			Success:     true,
			Payload:     payload,
			Diagnostics: diags,
		}
	}
	if ctx.Err() != nil {
		// Cancellation never substitutes a placeholder.
		return WorkResult[*CookedTexturePayload]{
			Name: item.Name,
			Diagnostics: append(diags,
				diagf(SeverityWarning, CodeCancelled, item.Name, "cancelled: %v", ctx.Err())),
		}
	}
	if item.Payload.Settings.OnFailure == FailurePlaceholder {
		placeholder, _, perr := CookTexture(context.Background(), item.Name,
			nil, placeholderSettings(item.Payload.Settings))
		if perr == nil {
			return WorkResult[*CookedTexturePayload]{
				Name:            item.Name,
				Success:         true,
				UsedPlaceholder: true,
				Payload:         placeholder,
				Diagnostics: append(diags,
					diagf(SeverityWarning, CodePlaceholderSubstituted, item.Name,
						"cook failed, placeholder substituted: %v", err)),
			}
		}
	}
	return WorkResult[*CookedTexturePayload]{
		Name: item.Name,
		Diagnostics: append(diags,
			diagf(SeverityError, CodeDecodeFailed, item.Name, "cook failed: %v", err)),
	}
}

func placeholderSettings(s TextureImportSettings) TextureImportSettings {
	return TextureImportSettings{
		Type:          Texture2D,
		OutputFormat:  FormatRGBA8Unorm,
		PackingPolicy: s.PackingPolicy,
	}
}

// placeholderImage is the 1x1 neutral texture substituted for failed
// imports.
func placeholderImage() *ScratchImage {
	img, _ := NewScratchImage(1, 1, FormatRGBA8Unorm, 1, 1)
	copy(img.Subresource(0, 0), []byte{0x80, 0x80, 0x80, 0xFF})
	return img
}

// CookTexture runs the full texture cooking algorithm: decode, HDR
// handling, normal-map fix-ups, mip generation, cubemap assembly, BC7
// encoding and layout packing. A nil source cooks the placeholder.
// Unknown packing policies fall back to D3D12 with a warning
// diagnostic; all other problems are errors.
func CookTexture(ctx context.Context, name string, source []byte, settings TextureImportSettings) (*CookedTexturePayload, []ImportDiagnostic, error) {
	var diags []ImportDiagnostic

	policy, ok := LookupPackingPolicy(settings.PackingPolicy)
	if !ok {
		diags = append(diags, diagf(SeverityWarning, CodePackingPolicyUnknown, name,
			"unknown packing policy %d, using D3D12", settings.PackingPolicy))
		policy = PackingPolicy{ID: PackingD3D12}
	}

	var img *ScratchImage
	if source == nil {
		img = placeholderImage()
	} else {
		decoded, err := DecodeImage(name, source)
		if err != nil {
			return nil, diags, err
		}
		img = decoded
	}

	outputLDR := !settings.OutputFormat.IsHDR()
	if img.Format.IsHDR() && outputLDR {
		if settings.ExposureEV != 0 {
			if err := ApplyExposure(img, settings.ExposureEV); err != nil {
				return nil, diags, err
			}
		}
		if err := TonemapACES(img); err != nil {
			return nil, diags, err
		}
	}

	// Work in the output's color space so mip filtering linearizes
	// sRGB content around the kernel.
	working := workingFormat(settings.OutputFormat)
	if img.Format != working {
		converted, err := convertFormat(img, working)
		if err != nil {
			return nil, diags, err
		}
		img = converted
	}

	if settings.Type == TextureCube && !img.IsCubemap {
		edge := settings.CubeEdge
		if edge == 0 {
			edge = img.Height / 2
			if edge == 0 {
				edge = 1
			}
		}
		cube, err := EquirectToCubemap(ctx, img, edge)
		if err != nil {
			return nil, diags, err
		}
		img = cube
	}

	if settings.NormalMap && settings.InvertGreen {
		if err := InvertGreen(img); err != nil {
			return nil, diags, err
		}
	}

	if settings.GenerateMips {
		mipped, err := GenerateMips(ctx, img, settings.MipFilter, settings.MaxMipLevels)
		if err != nil {
			return nil, diags, err
		}
		img = mipped
	}

	if settings.NormalMap {
		if err := RenormalizeNormals(img); err != nil {
			return nil, diags, err
		}
	}

	if settings.OutputFormat.IsCompressed() {
		encoded, err := EncodeBC7(ctx, img, settings.Quality)
		if err != nil {
			return nil, diags, err
		}
		img = encoded
	}

	payload, err := PackTexture(img, policy)
	if err != nil {
		return nil, diags, err
	}
	return payload, diags, nil
}

// workingFormat is the uncompressed format cooking runs in before any
// block compression.
func workingFormat(output PixelFormat) PixelFormat {
	switch output {
	case FormatBC7Unorm:
		return FormatRGBA8Unorm
	case FormatBC7UnormSrgb:
		return FormatRGBA8UnormSrgb
	case FormatUnknown:
		return FormatRGBA8Unorm
	default:
		return output
	}
}

// convertFormat re-encodes every texel into a new image of the target
// format.
func convertFormat(img *ScratchImage, target PixelFormat) (*ScratchImage, error) {
	if img.Format.IsCompressed() || target.IsCompressed() {
		return nil, fmt.Errorf("content: cannot convert compressed formats (%s -> %s)", img.Format, target)
	}
	out, err := NewScratchImage(img.Width, img.Height, target, img.MipLevels, img.ArraySize)
	if err != nil {
		return nil, err
	}
	out.IsCubemap = img.IsCubemap
	for slice := uint32(0); slice < img.ArraySize; slice++ {
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			w, h := img.MipDimensions(mip)
			for y := uint32(0); y < h; y++ {
				for x := uint32(0); x < w; x++ {
					t, err := img.Texel(mip, slice, x, y)
					if err != nil {
						return nil, err
					}
					if err := out.SetTexel(mip, slice, x, y, t); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return out, nil
}
