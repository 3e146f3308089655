// Package validate checks shader well-formedness at the pass pipeline
// boundaries. It never mutates the shader. A violation is a compiler bug,
// so the default response is to abort with the violation and a full shader
// dump; the nonfatal debug flag collects every violation first, which is
// the mode the tests drive.
package validate

import (
	"fmt"
	"strings"

	"github.com/tilegpu/heron/internal/mir"
)

// Shader validates s, aborting on the first violation unless the nonfatal
// debug flag is set, in which case all violations are collected before the
// abort. when names the pipeline boundary for diagnostics.
func Shader(s *mir.Shader, when string) {
	if s.Ctx.Debug&mir.DebugSkipValidate != 0 {
		return
	}
	v := &validator{s: s, when: when,
		nonfatal: s.Ctx.Debug&mir.DebugValidateNonfatal != 0}
	v.run()
	if len(v.violations) > 0 {
		v.abort()
	}
}

// Check runs the same checks but returns the violations instead of
// aborting.
func Check(s *mir.Shader, when string) []string {
	v := &validator{s: s, when: when, nonfatal: true}
	v.run()
	return v.violations
}

type validator struct {
	s        *mir.Shader
	when     string
	nonfatal bool

	violations []string
}

func (v *validator) failf(format string, args ...interface{}) {
	v.violations = append(v.violations, fmt.Sprintf(format, args...))
	if !v.nonfatal {
		v.abort()
	}
}

func (v *validator) abort() {
	var sb strings.Builder
	fmt.Fprintf(&sb, "shader validation failed (%s):\n", v.when)
	for _, m := range v.violations {
		sb.WriteString("  ")
		sb.WriteString(m)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	v.s.Format(&sb)
	panic(sb.String())
}

func (v *validator) run() {
	for _, blk := range v.s.Blocks {
		v.checkBlock(blk)
		for _, i := range blk.Instrs {
			v.checkInstr(i)
		}
	}
	v.checkRegArrays()
	v.checkCaches()
	v.checkRefLists()
	v.checkMaskBalance()
	v.checkAlphaTests()
	v.checkEnd()
}
