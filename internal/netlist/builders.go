package netlist

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingTerminator is returned when a netlist lacks the .end terminator
// a control block must be inserted before.
var ErrMissingTerminator = errors.New("netlist missing .end terminator")

var controlBlockRegex = regexp.MustCompile(`(?m)^[ \t]*\.control[\s\S]*?\.endc[ \t]*$`)

// Default analysis commands. Overridable per build call.
const (
	DefaultACCmd   = "ac dec 10 1 1e9"
	DefaultTranCmd = "tran 50n 500u"
	DefaultDCCmd   = "dc Vcm 0 1.2 0.001"
)

// Default output file names the analysis blocks write and the evaluator
// reads back.
const (
	ACOutFile   = "output_ac.dat"
	TranOutFile = "output_tran.dat"
	DCOutFile   = "output_dc.dat"
)

// StripControlBlocks removes every .control/.endc block so repeated builds
// stay idempotent.
func StripControlBlocks(text string) string {
	return controlBlockRegex.ReplaceAllString(text, "")
}

// AppendControlBlock inserts block immediately before the last .end
// directive. Returns ErrMissingTerminator when the netlist has none.
func AppendControlBlock(text, block string) (string, error) {
	lc := strings.ToLower(text)
	idx := strings.LastIndex(lc, ".end")
	if idx < 0 {
		return "", ErrMissingTerminator
	}
	return text[:idx] + block + text[idx:], nil
}

func joinSignals(signals []string) string {
	var kept []string
	for _, s := range signals {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}

func buildWith(base, cmd, outFile string, signals []string) (string, error) {
	clean := StripControlBlocks(base)
	block := fmt.Sprintf("\n.control\n  %s\n  wrdata %s %s\n.endc\n", cmd, outFile, joinSignals(signals))
	return AppendControlBlock(clean, block)
}

// BuildAC returns the netlist with an AC sweep control block writing the
// selected signals to ACOutFile. Pass cmd == "" for the default sweep.
func BuildAC(base string, signals []string, cmd string) (string, error) {
	if cmd == "" {
		cmd = DefaultACCmd
	}
	return buildWith(base, cmd, ACOutFile, signals)
}

// BuildTran returns the netlist with a transient analysis control block.
func BuildTran(base string, signals []string, cmd string) (string, error) {
	if cmd == "" {
		cmd = DefaultTranCmd
	}
	return buildWith(base, cmd, TranOutFile, signals)
}

// BuildDC returns the netlist with a DC sweep control block.
func BuildDC(base string, signals []string, cmd string) (string, error) {
	if cmd == "" {
		cmd = DefaultDCCmd
	}
	return buildWith(base, cmd, DCOutFile, signals)
}
