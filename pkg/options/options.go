package options

import "runtime"

// DefaultOptions is the combined pipeline: a strict similarity threshold
// backed by the length-adaptive edit-distance fallback.
var DefaultOptions = CorrectorOptions{
	SimilarityThreshold: 0.95,
	TopN:                1,
	EditFallback:        true,
	ShortTokenLength:    10,
	ShortMaxDistance:    1,
	LongMaxDistance:     5,
	Normalize:           true,
	Workers:             0,
}

type CorrectorOptions struct {
	SimilarityThreshold float32
	TopN                int  // neighbours requested from the index; only the first is considered
	EditFallback        bool // run the edit-distance stage after a similarity miss
	ShortTokenLength    int  // jamo units; tokens up to this length count as short
	ShortMaxDistance    int
	LongMaxDistance     int
	Normalize           bool // NFC-normalise raw tokens before encoding
	Workers             int  // batch fan-out; <= 0 means GOMAXPROCS
}

// WorkerCount resolves Workers against the runtime.
func (o CorrectorOptions) WorkerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

type Options interface {
	Apply(options *CorrectorOptions)
}

type FuncConfig struct {
	ops func(options *CorrectorOptions)
}

func (w FuncConfig) Apply(conf *CorrectorOptions) {
	w.ops(conf)
}

func NewFuncOption(f func(options *CorrectorOptions)) *FuncConfig {
	return &FuncConfig{ops: f}
}

// Resolve applies opts on top of DefaultOptions.
func Resolve(opts ...Options) CorrectorOptions {
	o := DefaultOptions
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(&o)
		}
	}
	return o
}

func WithSimilarityThreshold(threshold float32) Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.SimilarityThreshold = threshold
	})
}

func WithTopN(n int) Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.TopN = n
	})
}

func WithFallback() Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.EditFallback = true
	})
}

func WithoutFallback() Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.EditFallback = false
	})
}

func WithShortTokenLength(units int) Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.ShortTokenLength = units
	})
}

func WithMaxDistances(short, long int) Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.ShortMaxDistance = short
		options.LongMaxDistance = long
	})
}

func WithNormalization(enabled bool) Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.Normalize = enabled
	})
}

func WithWorkers(n int) Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.Workers = n
	})
}

// Presets observed in production.

// SimilarityOnly accepts embedding neighbours at 0.65 and never falls back
// to edit distance.
func SimilarityOnly() Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.SimilarityThreshold = 0.65
		options.EditFallback = false
	})
}

// Combined is the default two-stage pipeline.
func Combined() Options {
	return NewFuncOption(func(options *CorrectorOptions) {
		options.SimilarityThreshold = 0.95
		options.EditFallback = true
	})
}
