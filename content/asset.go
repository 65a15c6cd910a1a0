// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// AssetKey identifies a cooked asset across sessions. Keys derive from
// the asset's domain and virtual path so re-imports of the same source
// land on the same key.
type AssetKey uint64

// InvalidAssetKey is the zero key; no cooked asset carries it.
const InvalidAssetKey AssetKey = 0

// AssetType partitions the cooked index by domain.
type AssetType uint8

const (
	AssetTexture AssetType = iota
	AssetBuffer
	AssetGeometry
	AssetMaterial
	AssetScene
)

func (t AssetType) String() string {
	switch t {
	case AssetTexture:
		return "texture"
	case AssetBuffer:
		return "buffer"
	case AssetGeometry:
		return "geometry"
	case AssetMaterial:
		return "material"
	case AssetScene:
		return "scene"
	}
	return fmt.Sprintf("AssetType(%d)", uint8(t))
}

// AssetKeyFor derives the stable key for a virtual path within a
// domain.
func AssetKeyFor(t AssetType, virtualPath string) AssetKey {
	h := xxhash.New()
	_, _ = h.WriteString(t.String())
	_, _ = h.WriteString("/")
	_, _ = h.WriteString(virtualPath)
	k := AssetKey(h.Sum64())
	if k == InvalidAssetKey {
		k = 1
	}
	return k
}
