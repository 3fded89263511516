// Package rngcontext owns the single process-wide mutable state the
// pipeline needs — camera registry, output buffer, startup secret — so
// nothing in this module relies on package-level globals. Per SPEC_FULL.md
// §9, cmd/webcamrng-server and cmd/webcamrng-nist each build exactly one
// Context and thread it through explicitly.
package rngcontext

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinith200527/webcamrng/internal/buffer"
	"github.com/vinith200527/webcamrng/internal/collector"
	"github.com/vinith200527/webcamrng/internal/condition"
	"github.com/vinith200527/webcamrng/internal/config"
	"github.com/vinith200527/webcamrng/internal/entropy"
	"github.com/vinith200527/webcamrng/internal/fetch"
	"github.com/vinith200527/webcamrng/internal/registry"
)

// Context bundles the registry, the output buffer, and the startup secret
// behind one constructor, matching the "single context object" design note
// in spec.md §9.
type Context struct {
	Registry *registry.Registry
	Buffer   *buffer.Buffer
	Secret   entropy.Secret

	cfg    *config.Config
	client *fetch.Client
	log    zerolog.Logger
}

// New constructs a Context: draws a fresh StartupSecret, loads the webcam
// file into a new Registry, opens the persistent buffer store, and wires a
// Refiller that runs one collection+conditioning round.
func New(cfg *config.Config, log zerolog.Logger) (*Context, error) {
	secret, err := entropy.NewSecret()
	if err != nil {
		return nil, err
	}

	reg := registry.New(cfg.Fetch.FailureThreshold, cfg.Fetch.DigestWindowSize)
	urls, err := registry.LoadFile(cfg.Webcams.File)
	if err != nil {
		return nil, err
	}
	reg.Load(urls)
	log.Info().Int("active_cameras", reg.Len()).Str("file", cfg.Webcams.File).Msg("rngcontext: loaded webcam list")

	client := fetch.New(fetch.Options{
		Timeout:           time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxSnapshotBytes:  cfg.Fetch.MaxSnapshotBytes,
		MaxMJPEGScanBytes: cfg.Fetch.MaxMJPEGScanBytes,
	}, cfg.Fetch.ConcurrencyLimit)

	c := &Context{
		Registry: reg,
		cfg:      cfg,
		client:   client,
		log:      log,
		Secret:   secret,
	}

	buf, err := buffer.Open(cfg.Buffer.DBPath, cfg.Buffer.LowWaterMark, c.refillRound, log)
	if err != nil {
		return nil, err
	}
	c.Buffer = buf

	if err := buf.LoadFromStore(); err != nil {
		return nil, err
	}
	if buf.Size() < cfg.Buffer.LowWaterMark {
		buf.RefillAsync(context.Background())
	}

	return c, nil
}

// Close releases the context's resources (the persistent buffer store).
func (c *Context) Close() error {
	return c.Buffer.Close()
}

// refillRound runs one collection round and, only if it met the success
// goal, conditions and pushes a batch of output blocks. It is the
// Refiller the Buffer invokes on low-water-mark and startup.
func (c *Context) refillRound(ctx context.Context) error {
	col := collector.New(c.Registry, c.client, collector.Options{
		ConcurrencyLimit: c.cfg.Fetch.ConcurrencyLimit,
		SuccessGoal:      c.cfg.Fetch.SuccessGoal,
		FailureThreshold: c.cfg.Fetch.FailureThreshold,
	})

	frames, err := col.Run(ctx)
	if err != nil {
		c.log.Warn().Err(err).Int("frames", len(frames)).Msg("rngcontext: round below success goal, skipping conditioning")
		return fmt.Errorf("rngcontext: collection round: %w", err)
	}

	blocks, err := condition.Condition(frames, c.Secret, c.cfg.Buffer.BlocksPerRound)
	if err != nil {
		return fmt.Errorf("rngcontext: conditioning round: %w", err)
	}

	for _, block := range blocks {
		c.Buffer.Push(condition.Hex(block))
	}
	c.log.Info().Int("blocks", len(blocks)).Int("buffer_size", c.Buffer.Size()).Msg("rngcontext: refill round complete")
	return nil
}
