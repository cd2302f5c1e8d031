// Package netlist handles the circuit description text: syntactic prechecks,
// atomic on-disk replacement with backup, and measurement directive blocks.
//
// Netlists produced by the advisory service are untrusted. Callers must run
// ValidateSyntax before Apply when the text came from outside; the patcher
// itself does not enforce that ordering.
package netlist

import (
	"fmt"
	"strings"
)

// ValidateSyntax performs a fast syntactic precheck on a netlist string and
// returns (ok, reason). It catches the obvious malformed outputs an advisory
// service can produce: truncated text, unbalanced .control/.endc blocks, and
// a missing .end terminator.
func ValidateSyntax(text string) (bool, string) {
	if len(text) < 10 {
		return false, "netlist too short"
	}

	lc := strings.ToLower(text)
	nControl := strings.Count(lc, ".control")
	nEndc := strings.Count(lc, ".endc")
	if (nControl > 0 || nEndc > 0) && nControl != nEndc {
		return false, fmt.Sprintf("mismatched .control/.endc counts: %d/%d", nControl, nEndc)
	}

	if !strings.Contains(lc, ".end") && !strings.Contains(lc, ".endc") {
		return false, "missing .end or .endc"
	}

	return true, "ok"
}
