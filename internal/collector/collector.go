// Package collector orchestrates one round of concurrent camera fetches:
// shuffle the active URL list, fan out bounded-concurrency fetches,
// assemble completion-ordered results, stop early once the success goal is
// reached, and update the registry's failure/disable state.
package collector

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/sync/semaphore"

	"github.com/vinith200527/webcamrng/internal/fetch"
	"github.com/vinith200527/webcamrng/internal/frame"
	"github.com/vinith200527/webcamrng/internal/registry"
)

// ErrInsufficientFrames is returned when a round fails to reach the
// configured success goal; per spec.md §4.5/§9, the conditioner must never
// run against an undersized frame set, so the caller is expected to skip
// conditioning entirely on this error.
var ErrInsufficientFrames = fmt.Errorf("collector: round yielded fewer frames than the goal")

// Options configures one Collector.
type Options struct {
	ConcurrencyLimit int
	SuccessGoal      int
	FailureThreshold int
}

// Collector drives rounds of collection against a shared registry and
// fetch client.
type Collector struct {
	reg    *registry.Registry
	client *fetch.Client
	opts   Options
}

// New builds a Collector bound to reg and client.
func New(reg *registry.Registry, client *fetch.Client, opts Options) *Collector {
	return &Collector{reg: reg, client: client, opts: opts}
}

type result struct {
	url   string
	frame *frame.ProcessedFrame
	err   error
}

// Run executes one collection round: it shuffles a snapshot of the active
// URL set, fetches every URL under a concurrency-bounded semaphore,
// consumes results in completion order, and cancels remaining fetches as
// soon as SuccessGoal frames have arrived. It returns ErrInsufficientFrames
// (wrapping the partial frame count) if the round undershoots the goal.
func (c *Collector) Run(ctx context.Context) ([]frame.ProcessedFrame, error) {
	urls := c.reg.Snapshot()
	if len(urls) == 0 {
		return nil, ErrInsufficientFrames
	}
	if err := cryptoShuffleURLs(urls); err != nil {
		return nil, err
	}

	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(c.opts.ConcurrencyLimit))
	results := make(chan result, len(urls))

	for _, url := range urls {
		url := url
		go func() {
			if err := sem.Acquire(roundCtx, 1); err != nil {
				// Context already cancelled; the round doesn't need this
				// result any more.
				return
			}
			defer sem.Release(1)

			f, err := c.client.Fetch(roundCtx, c.reg, url)
			select {
			case results <- result{url: url, frame: f, err: err}:
			case <-roundCtx.Done():
			}
		}()
	}

	var frames []frame.ProcessedFrame
collect:
	for i := 0; i < len(urls); i++ {
		select {
		case r := <-results:
			c.classify(r, &frames)
			if len(frames) >= c.opts.SuccessGoal {
				cancel() // remaining goroutines observe roundCtx.Done() and exit without a result
				break collect
			}
		case <-ctx.Done():
			break collect
		}
	}

	c.disableFailedURLs()

	if len(frames) < c.opts.SuccessGoal {
		return frames, fmt.Errorf("%w: got %d, wanted %d", ErrInsufficientFrames, len(frames), c.opts.SuccessGoal)
	}
	return frames, nil
}

// classify folds one fetch result into the frame set and the registry's
// failure/success counters. Duplicate-frame outcomes are silently dropped,
// matching spec.md §7 (not a failure).
func (c *Collector) classify(r result, frames *[]frame.ProcessedFrame) {
	if r.err == nil && r.frame != nil {
		*frames = append(*frames, *r.frame)
		c.reg.RecordSuccess(r.url)
		return
	}
	if r.err == frame.ErrDuplicate {
		return
	}
	c.reg.RecordFailure(r.url)
}

// disableFailedURLs removes every URL whose failure counter has reached the
// configured threshold and purges its auxiliary state.
func (c *Collector) disableFailedURLs() {
	failed := c.reg.FailedURLs()
	if len(failed) == 0 {
		return
	}
	set := make(map[string]struct{}, len(failed))
	for _, u := range failed {
		set[u] = struct{}{}
	}
	c.reg.Disable(set)
}

// cryptoShuffleURLs performs an in-place Fisher-Yates shuffle over urls
// using the OS cryptographic RNG, matching the reference implementation's
// use of secrets.SystemRandom for round ordering.
func cryptoShuffleURLs(urls []string) error {
	for i := len(urls) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("collector: shuffling url order: %w", err)
		}
		j := int(jBig.Int64())
		urls[i], urls[j] = urls[j], urls[i]
	}
	return nil
}
