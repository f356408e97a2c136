package jsonc

import (
	"encoding/json"
	"fmt"
	"io"
)

// PrettyPrint renders obj as indented JSON to w, numbering each line. It is
// the non-colorized, non-interactive reduction of the distilled tool's
// terminal pretty printer — syntax highlighting is a GUI concern and is out
// of scope here, but the line-numbered layout survives since it is useful in
// plain log output too.
func PrettyPrint(w io.Writer, obj any, indent string) error {
	b, err := json.MarshalIndent(obj, "", indent)
	if err != nil {
		return fmt.Errorf("marshaling for pretty print: %w", err)
	}
	lineNo := 1
	start := 0
	for i := 0; i <= len(b); i++ {
		if i == len(b) || b[i] == '\n' {
			if _, err := fmt.Fprintf(w, "%4d | %s\n", lineNo, b[start:i]); err != nil {
				return err
			}
			lineNo++
			start = i + 1
		}
	}
	return nil
}
