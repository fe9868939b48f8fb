package app

import (
	"context"

	"proxyup/internal/history"
	"proxyup/internal/logger"
	"proxyup/internal/ui"
)

// Outcome describes what a step did, for the run ledger.
type Outcome struct {
	Status  history.Status
	Detail  string
	Version string
	SHA256  string
}

// Step describes a single phase of a run.
type Step struct {
	Name    string
	Action  history.Action
	Spinner bool
	Fn      func(ctx context.Context) (Outcome, error)
}

// StepObserver is told about every finished step, failed or not.
type StepObserver func(ctx context.Context, step Step, outcome Outcome, err error)

// Pipeline executes steps sequentially and stops at the first failure.
type Pipeline struct {
	steps   []Step
	console *ui.Console
	logger  logger.Logger
	observe StepObserver
}

// NewPipeline constructs a new pipeline.
func NewPipeline(console *ui.Console, log logger.Logger, steps []Step, observe StepObserver) *Pipeline {
	return &Pipeline{
		steps:   steps,
		console: console,
		logger:  log,
		observe: observe,
	}
}

// Execute runs through all configured steps.
func (p *Pipeline) Execute(ctx context.Context) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.logger.DebugContext(ctx, "executing step", logger.String("step", step.Name))
		if step.Spinner {
			p.console.StartProgress(step.Name)
		}

		outcome, err := step.Fn(ctx)
		if outcome.Status == "" {
			outcome.Status = history.StatusOK
		}
		if err != nil {
			outcome.Status = history.StatusFailed
			if outcome.Detail == "" {
				outcome.Detail = err.Error()
			}
		}

		if step.Spinner {
			if err != nil {
				p.console.FailProgress(step.Name)
			} else {
				p.console.StopProgress(step.Name)
			}
		}

		if p.observe != nil {
			p.observe(ctx, step, outcome, err)
		}
		if err != nil {
			return err
		}
	}

	return nil
}
