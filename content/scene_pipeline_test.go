// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"testing"
)

const testSceneJSON = `{
  "scenes": [{"nodes": [0]}],
  "nodes": [
    {"name": "root", "children": [1, 2], "translation": [1, 2, 3]},
    {"name": "chair", "mesh": 0, "scale": [2, 2, 2]},
    {"children": [3]},
    {"name": "lamp", "mesh": 1, "rotation": [0, 0.707, 0, 0.707]}
  ],
  "meshes": [
    {"name": "chair_mesh", "primitives": [{"material": 0}]},
    {"name": "lamp_mesh", "primitives": [{}]}
  ],
  "materials": [{"name": "chair_mat"}]
}`

func testSceneResolver(t AssetType, name string) (AssetKey, bool) {
	switch name {
	case "chair_mesh", "lamp_mesh", "chair_mat":
		return AssetKeyFor(t, name), true
	}
	return InvalidAssetKey, false
}

func TestCookScene(t *testing.T) {
	payload, diags, err := CookScene("scene.json", []byte(testSceneJSON), testSceneResolver)
	if err != nil {
		t.Fatalf("CookScene: %v", err)
	}
	if len(payload.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(payload.Nodes))
	}

	root := &payload.Nodes[0]
	if payload.NodeName(root) != "root" {
		t.Errorf("expected root name, got %q", payload.NodeName(root))
	}
	if root.Parent != -1 {
		t.Errorf("expected root parent -1, got %d", root.Parent)
	}
	if root.Translation != [3]float32{1, 2, 3} {
		t.Errorf("expected root translation (1, 2, 3), got %v", root.Translation)
	}
	if root.Rotation != [4]float32{0, 0, 0, 1} {
		t.Errorf("expected identity rotation default, got %v", root.Rotation)
	}

	// Parents always precede children.
	for i, n := range payload.Nodes {
		if n.Parent >= int32(i) {
			t.Errorf("node %d has parent %d at or after itself", i, n.Parent)
		}
	}

	chair := &payload.Nodes[1]
	if payload.NodeName(chair) != "chair" {
		t.Fatalf("expected chair second, got %q", payload.NodeName(chair))
	}
	if chair.Mesh != AssetKeyFor(AssetGeometry, "chair_mesh") {
		t.Errorf("expected resolved mesh key, got %d", chair.Mesh)
	}
	if chair.Material != AssetKeyFor(AssetMaterial, "chair_mat") {
		t.Errorf("expected resolved material key, got %d", chair.Material)
	}
	if chair.Scale != [3]float32{2, 2, 2} {
		t.Errorf("expected chair scale (2, 2, 2), got %v", chair.Scale)
	}

	// Node 2 has no name; a warning names the synthesized fallback.
	found := false
	for _, d := range diags {
		if d.Code == CodeSceneNodeMissingName {
			found = true
		}
	}
	if !found {
		t.Errorf("expected missing-name warning, got %+v", diags)
	}
	unnamed := &payload.Nodes[2]
	if payload.NodeName(unnamed) != "node_2" {
		t.Errorf("expected synthesized name node_2, got %q", payload.NodeName(unnamed))
	}

	lamp := &payload.Nodes[3]
	if lamp.Parent != 2 {
		t.Errorf("expected lamp parented to node 2, got %d", lamp.Parent)
	}
	if lamp.Material != InvalidAssetKey {
		t.Errorf("expected lamp without material, got %d", lamp.Material)
	}
}

func TestCookSceneUnresolvedReference(t *testing.T) {
	payload, diags, err := CookScene("scene.json", []byte(testSceneJSON),
		func(AssetType, string) (AssetKey, bool) { return InvalidAssetKey, false })
	if err != nil {
		t.Fatalf("CookScene: %v", err)
	}
	if payload.Nodes[1].Mesh != InvalidAssetKey {
		t.Errorf("expected invalid key for unresolved mesh, got %d", payload.Nodes[1].Mesh)
	}
	found := false
	for _, d := range diags {
		if d.Code == CodeSceneUnresolvedRef && d.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unresolved-ref warning, got %+v", diags)
	}
}

func TestCookSceneInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"not json", "nope"},
		{"no nodes", `{"nodes": []}`},
		{"bad child index", `{"nodes": [{"name": "a", "children": [7]}]}`},
		{"node in two trees", `{"nodes": [{"name": "a", "children": [1]}, {"name": "b", "children": [1]}]}`},
		{"mesh out of range", `{"nodes": [{"name": "a", "mesh": 3}], "meshes": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := CookScene("scene.json", []byte(tt.source), nil); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
