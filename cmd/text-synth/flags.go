package main

import (
	"flag"

	"github.com/ironsheep/text-synth/internal/config"
)

// binder registers flags whose defaults come from a config and records
// which config field each flag overrides. Only flags given on the command
// line are applied, so file and environment settings survive.
type binder struct {
	fs    *flag.FlagSet
	src   *config.Config
	apply map[string]func(dst *config.Config)
}

func newBinder(fs *flag.FlagSet) *binder {
	return &binder{fs: fs, src: config.Default(), apply: map[string]func(*config.Config){}}
}

func (b *binder) stringVar(name, usage string, field func(*config.Config) *string) {
	p := field(b.src)
	b.fs.StringVar(p, name, *p, usage)
	b.apply[name] = func(dst *config.Config) { *field(dst) = *p }
}

func (b *binder) intVar(name, usage string, field func(*config.Config) *int) {
	p := field(b.src)
	b.fs.IntVar(p, name, *p, usage)
	b.apply[name] = func(dst *config.Config) { *field(dst) = *p }
}

func (b *binder) uint64Var(name, usage string, field func(*config.Config) *uint64) {
	p := field(b.src)
	b.fs.Uint64Var(p, name, *p, usage)
	b.apply[name] = func(dst *config.Config) { *field(dst) = *p }
}

func (b *binder) floatVar(name, usage string, field func(*config.Config) *float64) {
	p := field(b.src)
	b.fs.Float64Var(p, name, *p, usage)
	b.apply[name] = func(dst *config.Config) { *field(dst) = *p }
}

func (b *binder) boolVar(name, usage string, field func(*config.Config) *bool) {
	p := field(b.src)
	b.fs.BoolVar(p, name, *p, usage)
	b.apply[name] = func(dst *config.Config) { *field(dst) = *p }
}

// resolve builds the effective config: defaults, then the config file,
// then TEXT_SYNTH_* variables, then explicitly set flags.
func (b *binder) resolve(configPath string) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	b.fs.Visit(func(f *flag.Flag) {
		if apply, ok := b.apply[f.Name]; ok {
			apply(cfg)
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
