// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import "fmt"

// Severity grades an import diagnostic.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

// Diagnostic codes attached by the pipelines.
const (
	CodePackingPolicyUnknown      = "texture.packing_policy_unknown"
	CodeIndexWrittenWithErrors    = "import.index_written_with_errors"
	CodeDecodeFailed              = "texture.decode_failed"
	CodePlaceholderSubstituted    = "texture.placeholder_substituted"
	CodeCancelled                 = "import.cancelled"
	CodeStrideMismatch            = "buffer.stride_mismatch"
	CodeSceneNodeMissingName      = "scene.node_missing_name"
	CodeSceneUnresolvedRef        = "scene.unresolved_reference"
	CodeManifestInvalid           = "manifest.invalid"
	CodeGeometryDuplicate         = "geometry.duplicate_content"
	CodeMaterialUnresolvedTexture = "material.unresolved_texture"
)

// ImportDiagnostic is one observation attached to a work result or an
// import session.
type ImportDiagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	// Source names the input (file path or virtual path) the
	// diagnostic refers to; Object narrows it to a sub-object when
	// meaningful (a node, a mip, a material slot).
	Source string `json:"source,omitempty"`
	Object string `json:"object,omitempty"`
}

func (d ImportDiagnostic) String() string {
	out := fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Message)
	if d.Source != "" {
		out += " (" + d.Source
		if d.Object != "" {
			out += "#" + d.Object
		}
		out += ")"
	}
	return out
}

func diagf(sev Severity, code, source string, format string, args ...any) ImportDiagnostic {
	return ImportDiagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Source:   source,
	}
}
