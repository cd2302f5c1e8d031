package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNgSpice_Run_Success(t *testing.T) {
	dir := t.TempDir()
	// echo stands in for the simulator: prints its args and exits 0
	ng := NewNgSpice("echo", time.Minute)

	res, err := ng.Run(context.Background(), dir, "* test\n.end\n")
	require.NoError(t, err)
	assert.True(t, res.Success)

	// netlist was materialized for the run
	data, err := os.ReadFile(filepath.Join(dir, NetlistFileName))
	require.NoError(t, err)
	assert.Equal(t, "* test\n.end\n", string(data))

	// op log captured stdout
	opLog, err := os.ReadFile(res.OpLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(opLog), NetlistFileName)

	// bias artifacts always written, even with nothing to report
	assert.FileExists(t, filepath.Join(dir, BiasSummaryFileName))
	report, err := os.ReadFile(filepath.Join(dir, BiasReportFileName))
	require.NoError(t, err)
	assert.Contains(t, string(report), "No values found")
}

func TestNgSpice_Run_FailureIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	ng := NewNgSpice("false", time.Minute)

	res, err := ng.Run(context.Background(), dir, "* test\n.end\n")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.FileExists(t, res.OpLogPath)
}

func TestNgSpice_Run_MissingBinary(t *testing.T) {
	dir := t.TempDir()
	ng := NewNgSpice("definitely-not-a-real-binary-xyz", time.Minute)

	res, err := ng.Run(context.Background(), dir, "* test\n.end\n")
	require.NoError(t, err)
	assert.False(t, res.Success)

	opLog, err := os.ReadFile(res.OpLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(opLog), "error running")
}

func TestNgSpice_Run_CanceledContextKillsProcess(t *testing.T) {
	dir := t.TempDir()
	// sh -b <netlist> executes the written file as a script, so a netlist
	// that sleeps stands in for a hung simulator
	ng := NewNgSpice("sh", time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := ng.Run(ctx, dir, "sleep 30\n")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Less(t, time.Since(start), 10*time.Second, "process group should be killed promptly")
}

func TestNgSpice_Defaults(t *testing.T) {
	ng := NewNgSpice("", 0)
	assert.Equal(t, "ngspice", ng.Bin)
	assert.Equal(t, 5*time.Minute, ng.Timeout)
}
