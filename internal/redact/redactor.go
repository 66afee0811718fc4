package redact

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// Redaction is the cleaned form of one title plus the audit columns that
// accompany it in the redacted artifact. InfoTypes, Likelihoods and Marks
// hold one comma separated token per finding, in detection order.
type Redaction struct {
	Title       string
	InfoTypes   string
	Likelihoods string
	Marks       string
}

// Clean reports whether inspection found nothing to remove.
func (r Redaction) Clean() bool {
	return r.InfoTypes == ""
}

// Redactor fans titles out to the inspector with a bounded number of
// concurrent calls. Each call is retried with exponential backoff before
// its failure is allowed to abort the batch.
type Redactor struct {
	inspector   Inspector
	workers     int
	maxRetries  uint64
	backoffBase time.Duration
}

func NewRedactor(inspector Inspector, workers int, maxRetries uint64) *Redactor {
	if workers < 1 {
		workers = 1
	}
	return &Redactor{
		inspector:   inspector,
		workers:     workers,
		maxRetries:  maxRetries,
		backoffBase: time.Second,
	}
}

// inspect calls the inspector with bounded retries. Inspection calls time
// out and fail transiently; only an exhausted retry budget surfaces.
func (r *Redactor) inspect(ctx context.Context, title string) ([]Finding, error) {
	var findings []Finding
	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var ierr error
		findings, ierr = r.inspector.Inspect(ctx, title)
		if ierr != nil {
			return retry.RetryableError(ierr)
		}
		return nil
	})
	return findings, err
}

// RedactTitles inspects each distinct title exactly once and returns the
// result keyed by the original title, so callers can propagate one
// inspection to every duplicate row. An inspection whose retries are
// exhausted aborts the whole batch: a partially redacted artifact must
// never be persisted.
func (r *Redactor) RedactTitles(ctx context.Context, titles []string) (map[string]Redaction, error) {
	unique := make([]string, 0, len(titles))
	seen := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	var mu sync.Mutex
	out := make(map[string]Redaction, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, title := range unique {
		g.Go(func() error {
			findings, err := r.inspect(gctx, title)
			if err != nil {
				return err
			}

			red := apply(title, findings)

			mu.Lock()
			out[title] = red
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// apply substitutes each finding's quoted span with its info type name.
// Substitution is progressive: later findings see the text produced by
// earlier ones.
func apply(title string, findings []Finding) Redaction {
	infoTypes := make([]string, 0, len(findings))
	likelihoods := make([]string, 0, len(findings))
	marks := make([]string, 0, len(findings))

	for _, f := range findings {
		title = strings.ReplaceAll(title, f.Quote, f.InfoType)
		infoTypes = append(infoTypes, f.InfoType)
		likelihoods = append(likelihoods, f.Likelihood)
		marks = append(marks, "partial")
	}

	return Redaction{
		Title:       title,
		InfoTypes:   strings.Join(infoTypes, ", "),
		Likelihoods: strings.Join(likelihoods, ", "),
		Marks:       strings.Join(marks, ", "),
	}
}
