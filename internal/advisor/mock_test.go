package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_FullStagePipeline(t *testing.T) {
	ctx := context.Background()
	mock := &Mock{}

	analysisRaw, err := mock.Call(ctx, StageAnalysis, map[string]any{
		"metrics": map[string]any{"ac_gain_db": 20.0, "unity_bandwidth_hz": 2e6},
		"targets": map[string]any{"ac_gain_db": 40.0, "unity_bandwidth_hz": 1e6},
	})
	require.NoError(t, err)

	analysis, err := DecodeAnalysis(analysisRaw)
	require.NoError(t, err)
	assert.False(t, analysis.Pass)
	require.Len(t, analysis.Reasons, 1)
	assert.Contains(t, analysis.Reasons[0], "ac_gain_db below target")

	optimizeRaw, err := mock.Call(ctx, StageOptimize, map[string]any{"analysis": analysis})
	require.NoError(t, err)

	changes, err := DecodeOptimize(optimizeRaw)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)
	assert.Equal(t, "transistor_m1", changes.Changes[0].Component)
	assert.Equal(t, "increase", changes.Changes[0].Action)

	sizingRaw, err := mock.Call(ctx, StageSizing, map[string]any{
		"base_netlist": "* amp\n.end\n",
		"changes":      changes.Changes,
	})
	require.NoError(t, err)

	sizing, err := DecodeSizing(sizingRaw)
	require.NoError(t, err)
	assert.Contains(t, sizing.NetlistText, "* amp")
	assert.Contains(t, sizing.NetlistText, "patched netlist by mock advisor")
	assert.Contains(t, sizing.NetlistText, "transistor_m1 width increase")
}

func TestMock_AnalysisPassesWhenTargetsMet(t *testing.T) {
	mock := &Mock{}
	raw, err := mock.Call(context.Background(), StageAnalysis, map[string]any{
		"metrics": map[string]any{"ac_gain_db": 50.0},
		"targets": map[string]any{"ac_gain_db": 40.0},
	})
	require.NoError(t, err)

	analysis, err := DecodeAnalysis(raw)
	require.NoError(t, err)
	assert.True(t, analysis.Pass)
	assert.Empty(t, analysis.Reasons)
}

func TestMock_SizingWithoutBaseNetlist(t *testing.T) {
	mock := &Mock{}
	raw, err := mock.Call(context.Background(), StageSizing, map[string]any{"changes": []any{}})
	require.NoError(t, err)

	sizing, err := DecodeSizing(raw)
	require.NoError(t, err)
	assert.Empty(t, sizing.NetlistText)
}

func TestMock_UnknownStageEchoes(t *testing.T) {
	mock := &Mock{}
	raw, err := mock.Call(context.Background(), "mystery", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Contains(t, raw, "text")
}
