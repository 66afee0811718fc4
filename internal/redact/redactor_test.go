package redact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	mu       sync.Mutex
	calls    []string
	findings map[string][]Finding
	err      error
}

func (f *fakeInspector) Inspect(_ context.Context, text string) ([]Finding, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.findings[text], nil
}

func TestRedactTitles_InspectsEachUniqueTitleOnce(t *testing.T) {
	insp := &fakeInspector{findings: map[string][]Finding{}}
	r := NewRedactor(insp, 4, 0)

	out, err := r.RedactTitles(context.Background(),
		[]string{"cats", "john smith", "cats", "cats"})
	require.NoError(t, err)

	assert.Len(t, insp.calls, 2)
	assert.Len(t, out, 2)
	assert.True(t, out["cats"].Clean())
}

func TestRedactTitles_ProgressiveSubstitution(t *testing.T) {
	insp := &fakeInspector{findings: map[string][]Finding{
		"call john smith at 555-0100": {
			{Quote: "john smith", InfoType: "PERSON_NAME", Likelihood: "LIKELY"},
			{Quote: "555-0100", InfoType: "PHONE_NUMBER", Likelihood: "VERY_LIKELY"},
		},
	}}
	r := NewRedactor(insp, 1, 0)

	out, err := r.RedactTitles(context.Background(), []string{"call john smith at 555-0100"})
	require.NoError(t, err)

	red := out["call john smith at 555-0100"]
	assert.Equal(t, "call PERSON_NAME at PHONE_NUMBER", red.Title)
	assert.Equal(t, "PERSON_NAME, PHONE_NUMBER", red.InfoTypes)
	assert.Equal(t, "LIKELY, VERY_LIKELY", red.Likelihoods)
	assert.Equal(t, "partial, partial", red.Marks)
	assert.False(t, red.Clean())
}

func TestRedactTitles_FailureAbortsBatch(t *testing.T) {
	insp := &fakeInspector{err: errors.New("quota exceeded")}
	r := NewRedactor(insp, 2, 2)
	r.backoffBase = time.Millisecond

	_, err := r.RedactTitles(context.Background(), []string{"a", "b", "c"})
	assert.Error(t, err)
}

// flakyInspector fails a fixed number of calls before recovering.
type flakyInspector struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyInspector) Inspect(_ context.Context, _ string) ([]Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("deadline exceeded")
	}
	return nil, nil
}

func TestRedactTitles_RetriesTransientFailures(t *testing.T) {
	insp := &flakyInspector{failures: 2}
	r := NewRedactor(insp, 1, 2)
	r.backoffBase = time.Millisecond

	out, err := r.RedactTitles(context.Background(), []string{"cats"})
	require.NoError(t, err)

	assert.Len(t, out, 1)
	assert.Equal(t, 3, insp.calls)
	assert.True(t, out["cats"].Clean())
}
