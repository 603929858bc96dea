package wam

import (
	"github.com/rupertlssmith/hak-wambook/internal/engine/generator"
	"github.com/rupertlssmith/hak-wambook/internal/machine"
)

// MachineConfig controls the region sizes and execution path a Machine
// is built with, mirroring wazero's RuntimeConfig: an immutable value
// built by chaining With* methods off a base, each returning a clone
// rather than mutating the receiver.
type MachineConfig struct {
	registerCount uint32
	heapSize      uint32
	stackSize     uint32
	pdlSize       uint32
	useGenerator  bool
	level         generator.Level
	l2Path        string
}

// machineLessConfig mirrors wazero's engineLessConfig: a package-level
// base holding every default, cloned rather than recomputed so that a
// caller chaining one or two With* calls never risks forgetting a
// default field.
var machineLessConfig = &MachineConfig{
	registerCount: machine.DefaultConfig().RegisterCount,
	heapSize:      machine.DefaultConfig().HeapSize,
	stackSize:     machine.DefaultConfig().StackSize,
	pdlSize:       machine.DefaultConfig().PDLSize,
	useGenerator:  false,
	level:         generator.Level0,
	l2Path:        "l2.bc",
}

// clone ensures all fields are copied even as new ones are added.
func (c *MachineConfig) clone() *MachineConfig {
	ret := *c
	return &ret
}

// NewMachineConfig returns the default configuration: the region sizes
// named in spec.md's data model table, interpreter-only (no
// generator).
func NewMachineConfig() *MachineConfig {
	return machineLessConfig.clone()
}

// WithRegisterCount overrides the number of addressable registers.
func (c *MachineConfig) WithRegisterCount(n uint32) *MachineConfig {
	ret := c.clone()
	ret.registerCount = n
	return ret
}

// WithHeapSize overrides the heap region's cell count.
func (c *MachineConfig) WithHeapSize(n uint32) *MachineConfig {
	ret := c.clone()
	ret.heapSize = n
	return ret
}

// WithStackSize overrides the environment stack region's cell count.
func (c *MachineConfig) WithStackSize(n uint32) *MachineConfig {
	ret := c.clone()
	ret.stackSize = n
	return ret
}

// WithPDLSize overrides the push-down list region's cell count.
func (c *MachineConfig) WithPDLSize(n uint32) *MachineConfig {
	ret := c.clone()
	ret.pdlSize = n
	return ret
}

// WithGenerator selects whether code_added lowers ingested fragments
// through the closure-based generator (true) or leaves every offset to
// the interpreter (false, the default) — the same choice wazero's
// NewRuntimeConfigJIT / NewRuntimeConfigInterpreter make between engine
// kinds, expressed here as one flag rather than two constructors since
// unlike JIT-vs-interpreter this choice never fails at runtime for lack
// of platform support.
func (c *MachineConfig) WithGenerator(enabled bool) *MachineConfig {
	ret := c.clone()
	ret.useGenerator = enabled
	return ret
}

// WithOptimizationLevel sets the generator's closure-specialization
// level (0..4, see internal/engine/generator). Ignored when the
// generator is disabled.
func (c *MachineConfig) WithOptimizationLevel(level int) *MachineConfig {
	ret := c.clone()
	ret.level = generator.Level(level)
	return ret
}

// WithDiagnosticsPath overrides where the generator persists its l2.bc
// diagnostic artifact. Ignored when the generator is disabled.
func (c *MachineConfig) WithDiagnosticsPath(path string) *MachineConfig {
	ret := c.clone()
	ret.l2Path = path
	return ret
}

func (c *MachineConfig) machineConfig() machine.Config {
	return machine.Config{
		RegisterCount: c.registerCount,
		HeapSize:      c.heapSize,
		StackSize:     c.stackSize,
		PDLSize:       c.pdlSize,
	}
}
