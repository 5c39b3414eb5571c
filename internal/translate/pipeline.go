package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/core/observability"
)

var ErrTranslation = errors.New("translate: legacy parameter translation failed")

type Outcome int

const (
	NotApplicable Outcome = iota
	Translated
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NotApplicable:
		return "not_applicable"
	case Translated:
		return "translated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the internal outcome of a translation run. Options is never nil.
type Result struct {
	Outcome Outcome
	Options Options
	Params  []Param
	Skipped int
	Err     error
}

type PipelineConfig struct {
	// AdvancedFeatures gates every optional stage.
	AdvancedFeatures bool
	AutoGravity      bool
	Derivatives      bool
	DerivativeSet    map[string]Options
}

type stageSpec struct {
	enabled func(PipelineConfig) bool
	build   func(PipelineConfig) Stage
}

// run order: derivative defaults may supply the aspect auto gravity keys on
var optionalStages = []stageSpec{
	{
		enabled: func(c PipelineConfig) bool {
			return c.AdvancedFeatures && c.Derivatives && len(c.DerivativeSet) > 0
		},
		build: func(c PipelineConfig) Stage { return DerivativeDefaults{Derivatives: c.DerivativeSet} },
	},
	{
		enabled: func(c PipelineConfig) bool { return c.AdvancedFeatures && c.AutoGravity },
		build:   func(PipelineConfig) Stage { return AutoGravity{} },
	},
}

// Pipeline runs detect, parse, process and the enabled stages. It holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	log    *slog.Logger
	stages []Stage
}

func NewPipeline(cfg PipelineConfig, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{log: log}
	for _, s := range optionalStages {
		if s.enabled(cfg) {
			p.stages = append(p.stages, s.build(cfg))
		}
	}
	return p
}

// Stages returns the names of the enabled stages in run order.
func (p *Pipeline) Stages() []string {
	out := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		out = append(out, s.Name())
	}
	return out
}

// Run translates u and reports how it went. Panics raised while translating
// are recovered into a Failed result.
func (p *Pipeline) Run(u *url.URL) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{
				Outcome: Failed,
				Options: Options{},
				Err:     fmt.Errorf("%w: %v", ErrTranslation, rec),
			}
		}
	}()

	if !Detect(u, p.log) {
		return Result{Outcome: NotApplicable, Options: Options{}}
	}

	parsed := Parse(u, p.log)
	opts := Process(parsed.Params)
	for _, s := range p.stages {
		s.Apply(opts, p.log)
	}
	return Result{
		Outcome: Translated,
		Options: opts,
		Params:  parsed.Params,
		Skipped: parsed.Skipped,
	}
}

// Evaluate runs u through the pipeline, records the outcome and logs a
// failure with the request context. A failed result carries empty options.
func (p *Pipeline) Evaluate(ctx context.Context, u *url.URL) Result {
	res := p.Run(u)
	observability.ObserveTranslation(res.Outcome.String(), res.Skipped)
	if res.Outcome == Failed {
		p.log.WarnContext(ctx, "legacy translation failed; continuing without transform", "err", res.Err)
	}
	return res
}

// Translate is the fail-open boundary: a failed translation is reported as
// empty options so the request proceeds untransformed.
func (p *Pipeline) Translate(ctx context.Context, u *url.URL) Options {
	return p.Evaluate(ctx, u).Options
}
