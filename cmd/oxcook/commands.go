// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/abdes/oxygen/content"
)

// report is the optional JSON summary written next to stderr output.
type report struct {
	Command     string                     `json:"command"`
	Success     bool                       `json:"success"`
	Assets      []string                   `json:"assets,omitempty"`
	Diagnostics []content.ImportDiagnostic `json:"diagnostics,omitempty"`
}

func printDiagnostics(diags []content.ImportDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s\n", d.String())
	}
}

func writeReport(path string, r *report) int {
	if path == "" {
		return exitOK
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: encode report: %v\n", err)
		return exitIO
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: write report: %v\n", err)
		return exitIO
	}
	return exitOK
}

// finishSession finalizes and prints whatever the session gathered.
func finishSession(session *content.ImportSession) int {
	diags, err := session.Finalize()
	printDiagnostics(diags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: finalize: %v\n", err)
		return exitIO
	}
	return exitOK
}

func openSession(root string) (*content.ImportSession, error) {
	return content.NewImportSession(root,
		content.NewResourceTableRegistry(),
		content.NewLooseCookedIndexRegistry())
}

func runTexture(args []string) int {
	fs := flag.NewFlagSet("texture", flag.ContinueOnError)
	var (
		source      = fs.String("source", "", "source image file (png, jpeg, bmp, tiff, webp, hdr)")
		virtualPath = fs.String("virtual-path", "", "virtual path of the cooked asset")
		root        = fs.String("cooked-root", "cooked", "output directory")
		format      = fs.String("format", "rgba8_srgb", "output format: rgba8, rgba8_srgb, rgba16f, rgba32f, bc7, bc7_srgb")
		mips        = fs.Bool("mips", true, "generate the full mip chain")
		filter      = fs.String("filter", "kaiser", "mip filter: box, kaiser, lanczos")
		cube        = fs.Bool("cube", false, "cook an equirectangular source into a cubemap")
		normalMap   = fs.Bool("normal-map", false, "treat the source as a tangent-space normal map")
		invertGreen = fs.Bool("invert-green", false, "invert the green channel before mip generation")
		exposure    = fs.Float64("exposure", 0, "exposure bias in EV for HDR sources")
		packing     = fs.Uint("packing", 0, "packing policy id: 0 d3d12, 1 tight")
		quality     = fs.String("quality", "balanced", "bc7 quality: fast, balanced, high")
		placeholder = fs.Bool("placeholder-on-failure", false, "substitute a 1x1 placeholder when cooking fails")
		reportPath  = fs.String("report", "", "write a JSON report to this path")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *source == "" || *virtualPath == "" {
		fmt.Fprintln(os.Stderr, "oxcook texture: -source and -virtual-path are required")
		fs.Usage()
		return exitUsage
	}

	manifest := content.Manifest{Version: content.ManifestVersion}
	job := content.ManifestJob{
		Type:        "texture",
		Source:      *source,
		VirtualPath: *virtualPath,
		Format:      *format,
		NormalMap:   *normalMap,
		InvertGreen: *invertGreen,
		ExposureEV:  float32(*exposure),
		Cube:        *cube,
		Quality:     *quality,
		MipFilter:   *filter,
	}
	settings := manifest.JobSettings(&job)
	settings.GenerateMips = *mips
	settings.PackingPolicy = content.PackingPolicyID(*packing)
	if *placeholder {
		settings.OnFailure = content.FailurePlaceholder
	}

	return cookTextures(*root, []content.ManifestJob{job},
		[]content.TextureImportSettings{settings}, "texture", *reportPath)
}

// cookTextures runs texture jobs through the pipeline and emits the
// payloads into one session.
func cookTextures(root string, jobs []content.ManifestJob, settings []content.TextureImportSettings, command, reportPath string) int {
	session, err := openSession(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		return exitIO
	}

	rep := report{Command: command, Success: true}
	failed := false

	type readJob struct {
		name string
		data []byte
		set  content.TextureImportSettings
	}
	var ready []readJob
	for i := range jobs {
		data, err := os.ReadFile(jobs[i].Source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "oxcook: read %s: %v\n", jobs[i].Source, err)
			failed = true
			continue
		}
		ready = append(ready, readJob{name: jobs[i].VirtualPath, data: data, set: settings[i]})
	}

	pipeline := content.NewTexturePipeline(runtime.GOMAXPROCS(0), len(jobs)+1)
	go func() {
		for _, j := range ready {
			_ = pipeline.Submit(content.WorkItem[content.TextureJob]{
				Ctx:     context.Background(),
				Name:    j.name,
				Payload: content.TextureJob{Source: j.data, Settings: j.set},
			})
		}
		pipeline.Close()
	}()
	emitter, err := session.Emitter(content.AssetTexture)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		return exitIO
	}
	for r := range pipeline.Results() {
		session.Report(r.Diagnostics...)
		rep.Diagnostics = append(rep.Diagnostics, r.Diagnostics...)
		if !r.Success {
			failed = true
			continue
		}
		key := content.AssetKeyFor(content.AssetTexture, r.Name)
		descriptor, _ := json.Marshal(r.Payload.Header)
		if err := emitter.Emit(key, r.Name, descriptor, r.Payload.Encode()); err != nil {
			fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
			failed = true
			continue
		}
		rep.Assets = append(rep.Assets, r.Name)
	}

	if code := finishSession(session); code != exitOK {
		return code
	}
	rep.Success = !failed
	if code := writeReport(reportPath, &rep); code != exitOK {
		return code
	}
	if failed {
		return exitImport
	}
	return exitOK
}

func runBuffer(args []string) int {
	fs := flag.NewFlagSet("buffer", flag.ContinueOnError)
	var (
		source      = fs.String("source", "", "source binary file")
		virtualPath = fs.String("virtual-path", "", "virtual path of the cooked asset")
		root        = fs.String("cooked-root", "cooked", "output directory")
		stride      = fs.Uint("stride", 0, "element stride in bytes, 0 for a raw buffer")
		align       = fs.Uint("align", 4, "pad the cooked payload to this alignment")
		reportPath  = fs.String("report", "", "write a JSON report to this path")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *source == "" || *virtualPath == "" {
		fmt.Fprintln(os.Stderr, "oxcook buffer: -source and -virtual-path are required")
		fs.Usage()
		return exitUsage
	}

	data, err := os.ReadFile(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: read %s: %v\n", *source, err)
		return exitIO
	}
	payload, diags, err := content.CookBuffer(*virtualPath, data, content.BufferImportSettings{
		Stride:    uint32(*stride),
		Alignment: uint32(*align),
	})
	printDiagnostics(diags)
	rep := report{Command: "buffer", Diagnostics: diags}
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		_ = writeReport(*reportPath, &rep)
		return exitImport
	}

	session, err := openSession(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		return exitIO
	}
	emitter, err := session.Emitter(content.AssetBuffer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		return exitIO
	}
	key := content.AssetKeyFor(content.AssetBuffer, *virtualPath)
	descriptor, _ := json.Marshal(payload.Header)
	if err := emitter.Emit(key, *virtualPath, descriptor, payload.Encode()); err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		return exitIO
	}
	if code := finishSession(session); code != exitOK {
		return code
	}
	rep.Success = true
	rep.Assets = []string{*virtualPath}
	return writeReport(*reportPath, &rep)
}

func runScene(args []string) int {
	fs := flag.NewFlagSet("scene", flag.ContinueOnError)
	var (
		source      = fs.String("source", "", "glTF-subset scene JSON")
		virtualPath = fs.String("virtual-path", "", "virtual path of the cooked asset")
		root        = fs.String("cooked-root", "cooked", "output directory")
		reportPath  = fs.String("report", "", "write a JSON report to this path")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *source == "" || *virtualPath == "" {
		fmt.Fprintln(os.Stderr, "oxcook scene: -source and -virtual-path are required")
		fs.Usage()
		return exitUsage
	}

	data, err := os.ReadFile(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: read %s: %v\n", *source, err)
		return exitIO
	}
	// Mesh and material references resolve against keys derived from
	// the referenced names; the matching assets may be cooked by a
	// later run against the same root.
	resolve := func(t content.AssetType, name string) (content.AssetKey, bool) {
		return content.AssetKeyFor(t, name), true
	}
	payload, diags, err := content.CookScene(*virtualPath, data, resolve)
	printDiagnostics(diags)
	rep := report{Command: "scene", Diagnostics: diags}
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		_ = writeReport(*reportPath, &rep)
		return exitImport
	}

	session, err := openSession(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		return exitIO
	}
	emitter, err := session.Emitter(content.AssetScene)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		return exitIO
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: encode scene: %v\n", err)
		return exitIO
	}
	key := content.AssetKeyFor(content.AssetScene, *virtualPath)
	if err := emitter.Emit(key, *virtualPath, nil, encoded); err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: %v\n", err)
		return exitIO
	}
	if code := finishSession(session); code != exitOK {
		return code
	}
	rep.Success = true
	rep.Assets = []string{*virtualPath}
	return writeReport(*reportPath, &rep)
}

func runManifest(args []string) int {
	fs := flag.NewFlagSet("manifest", flag.ContinueOnError)
	var (
		path       = fs.String("file", "", "import manifest JSON")
		root       = fs.String("cooked-root", "cooked", "output directory")
		reportPath = fs.String("report", "", "write a JSON report to this path")
	)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *path == "" {
		fmt.Fprintln(os.Stderr, "oxcook manifest: -file is required")
		fs.Usage()
		return exitUsage
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oxcook: read %s: %v\n", *path, err)
		return exitIO
	}
	manifest, err := content.ParseManifest(data, os.Stderr)
	if err != nil {
		return exitUsage
	}

	base := filepath.Dir(*path)
	var textureJobs []content.ManifestJob
	var textureSettings []content.TextureImportSettings
	code := exitOK
	for i := range manifest.Jobs {
		job := manifest.Jobs[i]
		if !filepath.IsAbs(job.Source) {
			job.Source = filepath.Join(base, job.Source)
		}
		switch job.Type {
		case "texture":
			textureJobs = append(textureJobs, job)
			textureSettings = append(textureSettings, manifest.JobSettings(&manifest.Jobs[i]))
		case "buffer":
			if c := runBuffer([]string{
				"-source", job.Source,
				"-virtual-path", job.VirtualPath,
				"-cooked-root", *root,
				"-stride", fmt.Sprint(job.Stride),
			}); c != exitOK {
				code = c
			}
		case "scene":
			if c := runScene([]string{
				"-source", job.Source,
				"-virtual-path", job.VirtualPath,
				"-cooked-root", *root,
			}); c != exitOK {
				code = c
			}
		default:
			fmt.Fprintf(os.Stderr, "oxcook: manifest job type %q has no standalone cooker yet\n", job.Type)
		}
	}
	if len(textureJobs) > 0 {
		if c := cookTextures(*root, textureJobs, textureSettings, "manifest", *reportPath); c != exitOK {
			code = c
		}
	}
	return code
}
