// Package heron compiles shader stage functions for a tile-based GPU: it
// takes the structured SSA IR the front-end produces and returns
// register-allocated machine IR ready for binary encoding.
//
// One BuildContext is shared by every stage of a pipeline; it carries the
// device capability flags and the register layout the driver staged, and it
// collects the per-stage facts the driver needs back (fragment discards,
// used register counts). Compilation itself is stateless beyond the context:
// each CompileShader call builds a fresh Shader.
package heron

import (
	"fmt"
	"os"

	"github.com/tilegpu/heron/internal/lower"
	"github.com/tilegpu/heron/internal/mir"
	"github.com/tilegpu/heron/internal/passes"
	"github.com/tilegpu/heron/internal/ssa"
	"github.com/tilegpu/heron/internal/validate"
)

// BuildContext is the immutable per-pipeline compilation configuration plus
// the per-stage build data the compiler feeds back.
type BuildContext = mir.BuildCtx

// DeviceInfo re-exports the hardware capability flags.
type DeviceInfo = mir.DeviceInfo

// PipelineLayout re-exports the driver register layout.
type PipelineLayout = mir.PipelineLayout

// VtxInAttr re-exports the staged vertex attribute description.
type VtxInAttr = mir.VtxInAttr

// DebugFlags re-exports the diagnostic flag set.
type DebugFlags = mir.DebugFlags

const (
	DebugDumpBeforePasses = mir.DebugDumpBeforePasses
	DebugDumpAfterPasses  = mir.DebugDumpAfterPasses
	DebugSkipValidate     = mir.DebugSkipValidate
	DebugValidateNonfatal = mir.DebugValidateNonfatal
)

// NewBuildContext returns a context for one pipeline's compilations.
func NewBuildContext(dev DeviceInfo, layout PipelineLayout, debug DebugFlags) *BuildContext {
	return &BuildContext{Dev: dev, Layout: layout, Debug: debug}
}

// CompileShader compiles one stage function: instruction selection, the
// legalization pass pipeline bracketed by the validator, then the feedback
// the driver reads from the context. Unsupported or malformed input surfaces
// as an error carrying the offending construct.
func CompileShader(ctx *BuildContext, fn *ssa.Function) (s *mir.Shader, err error) {
	if fn == nil || len(fn.Body) == 0 {
		return nil, fmt.Errorf("empty shader function")
	}
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("compiling %s shader: %v", fn.Stage, r)
		}
	}()

	s = lower.Translate(ctx, fn)
	if ctx.Debug&mir.DebugDumpBeforePasses != 0 {
		fmt.Fprintf(os.Stderr, "; %s shader before passes\n", fn.Stage)
		s.Format(os.Stderr)
	}

	validate.Shader(s, "before passes")
	passes.Run(s)
	validate.Shader(s, "after passes")

	if ctx.Debug&mir.DebugDumpAfterPasses != 0 {
		fmt.Fprintf(os.Stderr, "; %s shader after passes\n", fn.Stage)
		s.Format(os.Stderr)
	}

	if fn.Stage == ssa.StageFragment {
		if ctx.FragData.UsedRegs == nil {
			ctx.FragData.UsedRegs = make(map[mir.RegClass]uint32)
		}
		ctx.FragData.UsedRegs[mir.RegClassTemp] = s.UsedRegs(mir.RegClassTemp)
	}
	return s, nil
}
