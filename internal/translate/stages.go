package translate

import (
	"log/slog"
	"strings"
)

// Stage is an optional post-processing pass over resolved options. Stages
// only fill gaps and never replace a value that is already set.
type Stage interface {
	Name() string
	Apply(opts Options, log *slog.Logger)
}

// AutoGravity sets gravity=auto when an aspect ratio is requested without
// an explicit gravity.
type AutoGravity struct{}

func (AutoGravity) Name() string { return "auto_gravity" }

func (AutoGravity) Apply(opts Options, log *slog.Logger) {
	if !opts.Has(Aspect) || opts.Has(Gravity) {
		return
	}
	opts[Gravity] = String("auto")
	if log != nil {
		log.Debug("applied auto gravity", "aspect", opts[Aspect].String())
	}
}

// DerivativeDefaults merges a named derivative's configured options into
// the result as defaults. Derivative names are matched case-insensitively
// and must be stored lowercase.
type DerivativeDefaults struct {
	Derivatives map[string]Options
}

func (DerivativeDefaults) Name() string { return "derivative_defaults" }

func (d DerivativeDefaults) Apply(opts Options, log *slog.Logger) {
	ref, ok := opts.Get(Derivative)
	if !ok {
		return
	}
	def, ok := d.Derivatives[strings.ToLower(ref.String())]
	if !ok {
		if log != nil {
			log.Debug("derivative not configured", "derivative", ref.String())
		}
		return
	}
	copied := 0
	for n, v := range def {
		if opts.Has(n) {
			continue
		}
		opts[n] = v
		copied++
	}
	if log != nil {
		log.Debug("applied derivative defaults", "derivative", ref.String(), "copied", copied)
	}
}
