// Package prompt asks yes/no questions on the terminal.
package prompt

import (
	"fmt"
	"io"
	"strings"
)

// Ask writes question to out and reads one answer from in. Only "y" and
// "yes" count as consent; read errors and empty input decline.
func Ask(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (y/N): ", question)

	var response string
	if _, err := fmt.Fscanln(in, &response); err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
