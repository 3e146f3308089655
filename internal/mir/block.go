package mir

import "fmt"

// Block is an ordered list of instructions terminated by a control-flow
// instruction, except where a single-instruction successor continues the
// terminator implicitly.
type Block struct {
	Label  uint32
	Name   string
	Instrs []*Instr
	// Uses lists the branch instructions targeting this block.
	Uses []*Instr

	Shader *Shader
	index  int
}

// String implements fmt.Stringer.
func (b *Block) String() string {
	if b.Name != "" {
		return fmt.Sprintf("block%d (%s)", b.Label, b.Name)
	}
	return fmt.Sprintf("block%d", b.Label)
}

// Index returns the block's position in the shader's block list.
func (b *Block) Index() int { return b.index }

// Next returns the following block, or nil for the last one.
func (b *Block) Next() *Block {
	s := b.Shader
	if b.index+1 < len(s.Blocks) {
		return s.Blocks[b.index+1]
	}
	return nil
}

// Empty reports whether the block has no instructions.
func (b *Block) Empty() bool { return len(b.Instrs) == 0 }

// Terminator returns the block's last instruction if it ends the block.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if last.Info().EndsBlock {
		return last
	}
	return nil
}

// RedirectUses repoints every branch targeting b at to.
func (b *Block) RedirectUses(to *Block) {
	for _, br := range b.Uses {
		br.Target = to
		to.Uses = append(to.Uses, br)
	}
	b.Uses = nil
}
