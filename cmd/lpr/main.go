// lpr reads license plates from image files and opens the gate for
// authorized vehicles.
//
// Usage:
//
//	lpr [flags] <image|dir>...
//	lpr -allow 34ABC123,06XYZ99 -revoke 35DEF456
//
// Each processed file produces one JSON line on stdout:
//
//	{"file":"gate.jpg","frame_id":"...","detections":[{"plate":"34ABC123","box":[x1,y1,x2,y2]}]}
//
// Settings come from the environment (see internal/config); -env names a
// .env file to load first. -allow and -revoke edit the allowlist of a Redis
// store before any images are processed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/teslashibe/go-lpr/internal/app"
	"github.com/teslashibe/go-lpr/internal/config"
	"github.com/teslashibe/go-lpr/internal/log"
	"github.com/teslashibe/go-lpr/pkg/pipeline"
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".tif", ".tiff"}

type output struct {
	File       string                    `json:"file"`
	FrameID    string                    `json:"frame_id"`
	Detections []pipeline.PlateDetection `json:"detections"`
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging (overrides LPR_LOG_LEVEL)")
	envFile := flag.String("env", "", "Path to a .env file (default: .env if present)")
	allow := flag.String("allow", "", "Comma-separated plates to add to the store's allowlist")
	revoke := flag.String("revoke", "", "Comma-separated plates to remove from the store's allowlist")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <image|dir>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	allowed, revoked := splitList(*allow), splitList(*revoke)
	editing := len(allowed) > 0 || len(revoked) > 0
	if flag.NArg() == 0 && !editing {
		flag.Usage()
		os.Exit(2)
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	files := collect(flag.Args())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := app.New(ctx, cfg, nil)
	defer a.Close()

	if editing {
		if err := a.UpdateAllowlist(ctx, allowed, revoked); err != nil {
			log.Error("allowlist update failed", "error", err)
			return
		}
	}

	if err := run(ctx, a, files, os.Stdout); err != nil {
		log.Error("run ended", "error", err)
	}
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// run processes files in order and writes one JSON line per file.
// Unreadable files are logged and skipped.
func run(ctx context.Context, a *app.App, files []string, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := a.ProcessFile(ctx, path)
		if err != nil {
			log.Warn("skipping file", "file", path, "error", err)
			continue
		}

		if err := enc.Encode(output{File: path, FrameID: frame.ID, Detections: frame.Detections}); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	return nil
}

// collect expands directories into their image files, sorted by name.
// Plain file arguments are kept as given. Paths that cannot be listed are
// logged and skipped.
func collect(args []string) []string {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			log.Warn("skipping input", "path", arg, "error", err)
			continue
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			log.Warn("skipping input", "path", arg, "error", err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !isImage(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(arg, e.Name()))
		}
	}
	return files
}

func isImage(name string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(name)))
}
