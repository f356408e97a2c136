package solution

import (
	"io"

	"github.com/autoforge-project/autoforge/internal/jsonc"
)

// Print renders the loaded solution tree as line-numbered, indented JSON —
// the non-colorized reduction of the distilled tool's terminal pretty
// printer, since syntax-highlighted rendering is a GUI concern out of scope
// for this repository. Used by the "solution show" command.
func (m *Model) Print(w io.Writer) error {
	return jsonc.PrettyPrint(w, m.solution, "  ")
}
