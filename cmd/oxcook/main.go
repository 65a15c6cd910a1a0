// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command oxcook imports source assets into the loose-cooked store.
// Each subcommand cooks one asset domain; the manifest subcommand runs
// a batch of jobs described in a JSON manifest.
package main

import (
	"fmt"
	"os"
)

// Exit codes per failure class.
const (
	exitOK     = 0
	exitUsage  = 1
	exitImport = 2
	exitIO     = 3
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: oxcook <command> [flags]

commands:
  texture    cook one texture into the loose-cooked store
  buffer     cook one raw or structured buffer
  scene      cook a glTF-subset scene description
  manifest   run every job in a JSON import manifest

Run "oxcook <command> -h" for the command's flags.`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	var code int
	switch os.Args[1] {
	case "texture":
		code = runTexture(os.Args[2:])
	case "buffer":
		code = runBuffer(os.Args[2:])
	case "scene":
		code = runScene(os.Args[2:])
	case "manifest":
		code = runManifest(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "oxcook: unknown command %q\n", os.Args[1])
		usage()
		code = exitUsage
	}
	os.Exit(code)
}
