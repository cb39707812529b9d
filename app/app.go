// Package app wires the HAL, kernel and scenario together.
package app

import (
	"fmt"

	"github.com/samber/do"

	"green/hal"
	"green/kernel"
	"green/scenario"
)

type Config struct {
	// Scenario is a scenario file path. Empty runs the built-in ping-pong.
	Scenario string
	// StackSize overrides the scenario's stack_size when positive.
	StackSize int
	// MaxThreads caps live threads; zero takes the kernel default.
	MaxThreads int
	// Trace logs scheduler events alongside the scenario trace.
	Trace bool
}

// Report summarises one finished run.
type Report struct {
	Scenario string
	Stats    kernel.Stats
}

// New returns an injector providing the HAL, config, script and a fresh
// kernel for that script.
func New(h hal.HAL, cfg Config) *do.Injector {
	i := do.New()
	do.ProvideValue[hal.HAL](i, h)
	do.ProvideValue[Config](i, cfg)
	do.Provide[*scenario.Script](i, provideScript)
	do.Provide[*kernel.Kernel](i, provideKernel)
	return i
}

func provideScript(i *do.Injector) (*scenario.Script, error) {
	cfg := do.MustInvoke[Config](i)
	if cfg.Scenario == "" {
		return scenario.PingPong(), nil
	}
	return scenario.Load(cfg.Scenario)
}

func provideKernel(i *do.Injector) (*kernel.Kernel, error) {
	h := do.MustInvoke[hal.HAL](i)
	cfg := do.MustInvoke[Config](i)
	script, err := do.Invoke[*scenario.Script](i)
	if err != nil {
		return nil, err
	}

	kcfg := kernel.Config{
		StackSize:  script.StackSize,
		MaxThreads: cfg.MaxThreads,
		Memory:     h.Memory(),
	}
	if cfg.StackSize > 0 {
		kcfg.StackSize = cfg.StackSize
	}
	if cfg.Trace {
		kcfg.Trace = prefixLogger{prefix: "kernel: ", l: h.Logger()}
	}
	return kernel.New(kcfg), nil
}

// Run loads the configured scenario and runs it to completion, writing its
// trace to the HAL logger.
func Run(h hal.HAL, cfg Config) (Report, error) {
	installPanicHandler(h)

	i := New(h, cfg)
	defer i.Shutdown()

	script, err := do.Invoke[*scenario.Script](i)
	if err != nil {
		return Report{}, err
	}
	k, err := do.Invoke[*kernel.Kernel](i)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Scenario: script.Name}
	err = script.Run(k, h.Logger())
	rep.Stats = k.Stats()
	if err != nil {
		return rep, fmt.Errorf("%s: %w", script.Name, err)
	}
	return rep, nil
}

type prefixLogger struct {
	prefix string
	l      hal.Logger
}

func (p prefixLogger) WriteLineString(s string) { p.l.WriteLineString(p.prefix + s) }

func (p prefixLogger) WriteLineBytes(b []byte) { p.l.WriteLineString(p.prefix + string(b)) }
