package realdialog

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// prompt prints label and reads one line. Empty input and EOF return def.
func prompt(scanner *bufio.Scanner, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s (%s): ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	if !scanner.Scan() {
		return def
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return def
	}
	return line
}
