// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"context"
	"encoding/json"
	"fmt"
)

// sceneDocument is the glTF-subset JSON we ingest. Anything outside
// this shape is ignored.
type sceneDocument struct {
	Scenes []struct {
		Nodes []int `json:"nodes"`
	} `json:"scenes"`
	Nodes []struct {
		Name        string      `json:"name"`
		Children    []int       `json:"children"`
		Mesh        *int        `json:"mesh"`
		Translation *[3]float32 `json:"translation"`
		Rotation    *[4]float32 `json:"rotation"`
		Scale       *[3]float32 `json:"scale"`
	} `json:"nodes"`
	Meshes []struct {
		Name       string `json:"name"`
		Primitives []struct {
			Material *int `json:"material"`
		} `json:"primitives"`
	} `json:"meshes"`
	Materials []struct {
		Name string `json:"name"`
	} `json:"materials"`
}

// SceneNodeRecord is one flattened node. Parent is -1 for roots and
// always precedes the child in the record array. NameOffset/NameLen
// index the packed string table.
type SceneNodeRecord struct {
	NameOffset uint32
	NameLen    uint32
	Parent     int32

	Translation [3]float32
	Rotation    [4]float32
	Scale       [3]float32

	Mesh     AssetKey
	Material AssetKey
}

// CookedScenePayload is the flattened scene: node records plus the
// packed string table their names point into.
type CookedScenePayload struct {
	Nodes       []SceneNodeRecord
	StringTable []byte
}

// NodeName resolves a record's name from the string table.
func (p *CookedScenePayload) NodeName(n *SceneNodeRecord) string {
	return string(p.StringTable[n.NameOffset : n.NameOffset+n.NameLen])
}

// SceneJob is the input payload of the scene pipeline. Resolve maps
// mesh and material names onto cooked asset keys.
type SceneJob struct {
	Source  []byte
	Resolve func(t AssetType, name string) (AssetKey, bool)
}

// ScenePipeline cooks scene jobs concurrently.
type ScenePipeline = Pipeline[SceneJob, *CookedScenePayload]

// NewScenePipeline builds the bounded scene cooking stage.
func NewScenePipeline(workers, capacity int) *ScenePipeline {
	return NewPipeline[SceneJob, *CookedScenePayload](workers, capacity, cookSceneItem)
}

func cookSceneItem(ctx context.Context, item WorkItem[SceneJob]) WorkResult[*CookedScenePayload] {
	payload, diags, err := CookScene(item.Name, item.Payload.Source, item.Payload.Resolve)
	if err != nil {
		return WorkResult[*CookedScenePayload]{
			Name: item.Name,
			Diagnostics: append(diags,
				diagf(SeverityError, CodeManifestInvalid, item.Name, "scene cook failed: %v", err)),
		}
	}
	return WorkResult[*CookedScenePayload]{
		Name:        item.Name,
		Success:     true,
		Payload:     payload,
		Diagnostics: diags,
	}
}

// CookScene walks the document's node tree depth first from the scene
// roots and flattens it into parent-before-child records. Node names
// pack into one string table; mesh and material references resolve to
// asset keys through the job's resolver.
func CookScene(name string, source []byte, resolve func(t AssetType, name string) (AssetKey, bool)) (*CookedScenePayload, []ImportDiagnostic, error) {
	var doc sceneDocument
	if err := json.Unmarshal(source, &doc); err != nil {
		return nil, nil, fmt.Errorf("content: scene %q is not valid JSON: %w", name, err)
	}
	if len(doc.Nodes) == 0 {
		return nil, nil, fmt.Errorf("content: scene %q has no nodes", name)
	}

	roots := make([]int, 0, len(doc.Nodes))
	if len(doc.Scenes) > 0 {
		roots = append(roots, doc.Scenes[0].Nodes...)
	} else {
		// No scene object: treat nodes that never appear as a child as
		// roots.
		child := make([]bool, len(doc.Nodes))
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				if c >= 0 && c < len(doc.Nodes) {
					child[c] = true
				}
			}
		}
		for i := range doc.Nodes {
			if !child[i] {
				roots = append(roots, i)
			}
		}
	}

	var (
		diags   []ImportDiagnostic
		out     CookedScenePayload
		visited = make([]bool, len(doc.Nodes))
	)

	resolveRef := func(t AssetType, refName, object string) AssetKey {
		if refName == "" {
			return InvalidAssetKey
		}
		if resolve != nil {
			if key, ok := resolve(t, refName); ok {
				return key
			}
		}
		diags = append(diags, ImportDiagnostic{
			Severity: SeverityWarning,
			Code:     CodeSceneUnresolvedRef,
			Message:  fmt.Sprintf("%s %q did not resolve to a cooked asset", t, refName),
			Source:   name,
			Object:   object,
		})
		return InvalidAssetKey
	}

	var walk func(idx, parent int) error
	walk = func(idx, parent int) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return fmt.Errorf("content: scene %q references node %d out of %d", name, idx, len(doc.Nodes))
		}
		if visited[idx] {
			return fmt.Errorf("content: scene %q node %d appears twice in the tree", name, idx)
		}
		visited[idx] = true
		src := &doc.Nodes[idx]

		nodeName := src.Name
		if nodeName == "" {
			nodeName = fmt.Sprintf("node_%d", idx)
			diags = append(diags, diagf(SeverityWarning, CodeSceneNodeMissingName, name,
				"node %d has no name, using %q", idx, nodeName))
		}

		rec := SceneNodeRecord{
			NameOffset:  uint32(len(out.StringTable)),
			NameLen:     uint32(len(nodeName)),
			Parent:      int32(parent),
			Translation: [3]float32{0, 0, 0},
			Rotation:    [4]float32{0, 0, 0, 1},
			Scale:       [3]float32{1, 1, 1},
		}
		out.StringTable = append(out.StringTable, nodeName...)
		if src.Translation != nil {
			rec.Translation = *src.Translation
		}
		if src.Rotation != nil {
			rec.Rotation = *src.Rotation
		}
		if src.Scale != nil {
			rec.Scale = *src.Scale
		}
		if src.Mesh != nil {
			mi := *src.Mesh
			if mi < 0 || mi >= len(doc.Meshes) {
				return fmt.Errorf("content: scene %q node %q references mesh %d out of %d",
					name, nodeName, mi, len(doc.Meshes))
			}
			mesh := &doc.Meshes[mi]
			rec.Mesh = resolveRef(AssetGeometry, mesh.Name, nodeName)
			if len(mesh.Primitives) > 0 && mesh.Primitives[0].Material != nil {
				pi := *mesh.Primitives[0].Material
				if pi < 0 || pi >= len(doc.Materials) {
					return fmt.Errorf("content: scene %q node %q references material %d out of %d",
						name, nodeName, pi, len(doc.Materials))
				}
				rec.Material = resolveRef(AssetMaterial, doc.Materials[pi].Name, nodeName)
			}
		}

		self := len(out.Nodes)
		out.Nodes = append(out.Nodes, rec)
		for _, c := range src.Children {
			if err := walk(c, self); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := walk(root, -1); err != nil {
			return nil, diags, err
		}
	}
	if len(out.Nodes) == 0 {
		return nil, diags, fmt.Errorf("content: scene %q has no reachable nodes", name)
	}
	return &out, diags, nil
}
