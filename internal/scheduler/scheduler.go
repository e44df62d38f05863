// ABOUTME: Bounded-concurrency driver over a batch of feed URLs.
// ABOUTME: Runs polls through errgroup with a limit and tallies outcomes.

package scheduler

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feedspool/feedspool/internal/poll"
)

// PollFunc polls one URL to a terminal outcome or error.
type PollFunc func(ctx context.Context, in poll.Input) (*poll.Outcome, error)

// Params are the poll settings shared by every URL in a run.
type Params struct {
	RequestTimeout  time.Duration
	MinFetchPeriod  time.Duration
	RetainSrc       bool
	SkipEntryUpdate bool
	MarkDefunct     bool
}

// Result pairs a URL with its poll terminal. Exactly one of Outcome and
// Err is set.
type Result struct {
	URL     string
	Outcome *poll.Outcome
	Err     error
}

// Summary counts terminals by category for one run.
type Summary struct {
	Skipped     int
	NotModified int
	Updated     int
	Failed      int
}

func (s *Summary) Total() int {
	return s.Skipped + s.NotModified + s.Updated + s.Failed
}

// Scheduler fans a URL batch out over at most Limit concurrent polls.
// Individual poll errors are logged and counted, never propagated.
type Scheduler struct {
	pollFn PollFunc
	log    *zap.Logger
	limit  int

	// OnResult, when set, is invoked once per completed poll. Calls are
	// serialized; completion order is arbitrary.
	OnResult func(Result)
}

// New returns a Scheduler driving the given poller with the given
// concurrency limit. A limit below 1 is treated as 1.
func New(poller *poll.Poller, log *zap.Logger, limit int) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	return &Scheduler{pollFn: poller.Poll, log: log, limit: limit}
}

// Run polls every URL once and blocks until all polls have terminated.
// Duplicate URLs in the batch are polled only once. The returned error
// is only ever the context's error.
func (s *Scheduler) Run(ctx context.Context, urls []string, params Params) (*Summary, error) {
	runID := uuid.New().String()
	log := s.log.With(zap.String("run_id", runID))
	log.Info("starting poll run",
		zap.Int("urls", len(urls)), zap.Int("concurrency", s.limit))

	var (
		mu      sync.Mutex
		summary Summary
	)
	record := func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Err != nil:
			summary.Failed++
		case r.Outcome.Kind == poll.Skipped:
			summary.Skipped++
		case r.Outcome.Kind == poll.NotModified:
			summary.NotModified++
		default:
			summary.Updated++
		}
		if s.OnResult != nil {
			s.OnResult(r)
		}
	}

	// errgroup cancels its derived context once Wait returns, so the
	// parent is kept for reporting caller-initiated cancellation only.
	parent := ctx
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	seen := make(map[string]bool, len(urls))
	for _, url := range urls {
		if seen[url] {
			continue
		}
		seen[url] = true

		url := url
		g.Go(func() error {
			outcome, err := s.pollFn(ctx, poll.Input{
				URL:             url,
				RequestTimeout:  params.RequestTimeout,
				MinFetchPeriod:  params.MinFetchPeriod,
				RetainSrc:       params.RetainSrc,
				SkipEntryUpdate: params.SkipEntryUpdate,
				MarkDefunct:     params.MarkDefunct,
			})
			if err != nil {
				log.Warn("poll failed", zap.String("url", url), zap.Error(err))
			} else {
				log.Info("poll finished",
					zap.String("url", url),
					zap.String("outcome", outcome.Kind.String()))
			}
			record(Result{URL: url, Outcome: outcome, Err: err})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &summary, err
	}
	log.Info("poll run complete",
		zap.Int("updated", summary.Updated),
		zap.Int("not_modified", summary.NotModified),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return &summary, parent.Err()
}

// URLsFromFile reads one URL per line, skipping blank lines and lines
// starting with #.
func URLsFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}
