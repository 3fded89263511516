// Command webcam-health is the separate health-check utility that
// maintains the webcam list file (spec.md §6, supplemented from
// original_source/check_webcams.py): it re-checks every active URL a fixed
// number of times at a fixed interval and comments out (with "# ") any URL
// whose BLAKE2b digest never changes across attempts, or that never
// returns a usable frame at all.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	_ "github.com/joho/godotenv/autoload"

	"github.com/vinith200527/webcamrng/internal/config"
	"github.com/vinith200527/webcamrng/internal/fetch"
	"github.com/vinith200527/webcamrng/internal/logging"
	"github.com/vinith200527/webcamrng/internal/registry"
)

var cli struct {
	File     string `help:"Webcam list file to check and rewrite." default:"webcams.txt"`
	Interval int    `help:"Seconds between checks." default:"60"`
	Attempts int    `help:"Number of checks per URL." default:"5"`
}

func main() {
	kong.Parse(&cli)

	log := logging.New(config.Logging{Level: "info", File: "webcam_health.log", MaxSizeMB: 5, MaxBackups: 3})

	urls, err := registry.LoadFile(cli.File)
	if err != nil {
		log.Fatal().Err(err).Msg("health: failed to read webcam file")
	}
	if len(urls) == 0 {
		fmt.Println("no active URLs to check")
		return
	}

	client := fetch.New(fetch.Options{
		Timeout:           10 * time.Second,
		MaxSnapshotBytes:  4 * 1024 * 1024,
		MaxMJPEGScanBytes: 2 * 1024 * 1024,
	}, 100)

	alive := checkURLs(context.Background(), client, urls, cli.Attempts, cli.Interval, log)

	var dead []string
	for _, u := range urls {
		if !alive[u] {
			dead = append(dead, u)
		}
	}
	if len(dead) == 0 {
		fmt.Println("all cameras are updating correctly")
		return
	}

	fmt.Printf("%d cameras are not updating; commenting them out in %s\n", len(dead), cli.File)
	if err := rewriteFile(cli.File, alive); err != nil {
		log.Fatal().Err(err).Msg("health: failed to rewrite webcam file")
	}
}

// checkURLs probes every url attempts times, interval seconds apart,
// fingerprinting each successful response with BLAKE2b. A URL is "alive"
// if at least one attempt's fingerprint differs from the first one seen —
// i.e. the camera actually updated, not just responded.
func checkURLs(ctx context.Context, client *fetch.Client, urls []string, attempts, intervalSeconds int, log zerolog.Logger) map[string]bool {
	alive := make(map[string]bool, len(urls))
	firstDigest := make(map[string][16]byte, len(urls))
	seenFirst := make(map[string]bool, len(urls))
	scratch := registry.New(attempts+1, 1) // high failureThreshold never triggers Disable; window of 1 is enough to flag every repeat

	for attempt := 0; attempt < attempts; attempt++ {
		for _, u := range urls {
			f, err := client.Fetch(ctx, scratch, u)
			if err != nil {
				continue
			}
			if !seenFirst[u] {
				firstDigest[u] = f.Fingerprint
				seenFirst[u] = true
				continue
			}
			if f.Fingerprint != firstDigest[u] {
				alive[u] = true
			}
		}
		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return alive
			case <-time.After(time.Duration(intervalSeconds) * time.Second):
			}
		}
	}
	log.Info().Int("checked", len(urls)).Int("alive", len(alive)).Msg("health: check complete")
	return alive
}

// rewriteFile comments out (with "# ") every line in path whose URL is not
// marked alive, preserving existing comments and blank lines, and swaps the
// file in atomically via a temp-file rename.
func rewriteFile(path string, alive map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if !alive[trimmed] {
			lines[i] = "# " + line
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Clean(path))
}
