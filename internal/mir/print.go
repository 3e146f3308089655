package mir

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"
)

// Format writes a textual dump of the shader. Advisory output for debugging
// and validator diagnostics; nothing consumes it.
func (s *Shader) Format(w io.Writer) {
	fmt.Fprintf(w, "%s shader:\n", s.Stage)
	for _, blk := range s.Blocks {
		fmt.Fprintf(w, "%s:", blk)
		if len(blk.Uses) > 0 {
			var from []string
			for _, u := range blk.Uses {
				if u.Block != nil {
					from = append(from, u.Block.String())
				}
			}
			fmt.Fprintf(w, " ; from %s", strings.Join(from, ", "))
		}
		fmt.Fprintln(w)
		for _, i := range blk.Instrs {
			fmt.Fprintf(w, "\t%s\n", i)
		}
	}
	for c := RegClass(1); int(c) < NumRegClasses; c++ {
		regs := slices.Clone(s.regsByClass[c])
		if len(regs) == 0 {
			continue
		}
		slices.SortFunc(regs, func(a, b *Reg) int { return int(a.Index) - int(b.Index) })
		var used int
		for _, r := range regs {
			if len(r.Uses) > 0 || len(r.Writes) > 0 {
				used++
			}
		}
		fmt.Fprintf(w, "; %s: %d registers, %d referenced\n", c, len(regs), used)
	}
}

// String implements fmt.Stringer.
func (s *Shader) String() string {
	var sb strings.Builder
	s.Format(&sb)
	return sb.String()
}
