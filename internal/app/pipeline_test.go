package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxyup/internal/history"
	"proxyup/internal/logger"
	"proxyup/internal/ui"
)

func TestPipelineStopsAtFirstFailure(t *testing.T) {
	var out bytes.Buffer
	log := logger.NewMockLogger()

	var ran []string
	var observed []history.Status
	steps := []Step{
		{Name: "first", Fn: func(context.Context) (Outcome, error) { ran = append(ran, "first"); return Outcome{}, nil }},
		{Name: "second", Spinner: true, Fn: func(context.Context) (Outcome, error) {
			ran = append(ran, "second")
			return Outcome{}, errors.New("boom")
		}},
		{Name: "third", Fn: func(context.Context) (Outcome, error) { ran = append(ran, "third"); return Outcome{}, nil }},
	}

	p := NewPipeline(ui.NewConsole(log, &out), log, steps, func(_ context.Context, _ Step, o Outcome, _ error) {
		observed = append(observed, o.Status)
	})

	err := p.Execute(context.Background())
	require.EqualError(t, err, "boom")
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, []history.Status{history.StatusOK, history.StatusFailed}, observed)
	assert.Contains(t, out.String(), "✗ second")
}

func TestPipelineHonoursCancellation(t *testing.T) {
	log := logger.NewMockLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	p := NewPipeline(ui.NewConsole(log, &bytes.Buffer{}), log, []Step{{Name: "x", Fn: func(context.Context) (Outcome, error) {
		called = true
		return Outcome{}, nil
	}}}, nil)

	assert.ErrorIs(t, p.Execute(ctx), context.Canceled)
	assert.False(t, called)
}
