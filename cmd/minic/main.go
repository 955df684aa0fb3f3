package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"minic/pkg/compiler"
)

// resolvePath turns a path given on the command line or in a manifest into
// an absolute path, resolving any "../" components.
func resolvePath(relPath string) (string, error) {
	return filepath.Abs(relPath)
}

// Manifest describes a batch of .mini files to compile in one invocation
// (SPEC_FULL.md §B "Configuration"). Each entry defaults its output to the
// input's ".s" sibling when Output is empty.
type Manifest struct {
	Files []ManifestEntry `yaml:"files"`
}

type ManifestEntry struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

func main() {
	manifestPath := flag.String("manifest", "", "path to a YAML manifest listing multiple .mini files to compile")
	watch := flag.Bool("watch", false, "recompile the input file whenever it changes on disk")
	flag.Parse()

	if *manifestPath != "" {
		runManifest(*manifestPath)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: minic [-manifest build.yaml] [-watch] <file.mini>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	if *watch {
		runWatch(path)
		return
	}

	runOne(path)
}

func runOne(path string) {
	fullPath, err := resolvePath(path)
	if err != nil {
		log.Fatalf("resolving %s: %v", path, err)
	}

	result, err := compiler.CompileFile(fullPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if result.ErrorCount > 0 {
		os.Exit(1)
	}
}

func runManifest(manifestPath string) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("reading manifest %s: %v", manifestPath, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		log.Fatalf("parsing manifest %s: %v", manifestPath, err)
	}

	failures := 0
	for _, entry := range m.Files {
		fullPath, err := resolvePath(entry.Input)
		if err != nil {
			log.Printf("resolving %s: %v", entry.Input, err)
			failures++
			continue
		}

		outPath := entry.Output
		if outPath != "" {
			outPath, err = resolvePath(outPath)
			if err != nil {
				log.Printf("resolving output %s: %v", entry.Output, err)
				failures++
				continue
			}
		}

		result, err := compiler.CompileFileTo(fullPath, outPath)
		if err != nil {
			log.Printf("%s: %v", entry.Input, err)
			failures++
			continue
		}
		if result.ErrorCount > 0 {
			failures++
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}

// runWatch recompiles path every time it changes on disk, until the
// process is interrupted. It compiles once up front so the first run
// doesn't wait on a filesystem event.
func runWatch(path string) {
	fullPath, err := resolvePath(path)
	if err != nil {
		log.Fatalf("resolving %s: %v", path, err)
	}

	runOnceIgnoringExit(fullPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("starting watcher: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fullPath); err != nil {
		log.Fatalf("watching %s: %v", fullPath, err)
	}

	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", fullPath)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) {
				runOnceIgnoringExit(fullPath)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Println("watch error:", err)
		}
	}
}

func runOnceIgnoringExit(fullPath string) {
	if _, err := compiler.CompileFile(fullPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
}
