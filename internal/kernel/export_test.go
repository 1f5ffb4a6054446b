package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splk-dev/splk/internal/types"
)

func TestExport_CapturesAllMaps(t *testing.T) {
	k := New()
	ruleID, _ := k.AddScopedRule(types.ScopedRule{Content: "x", Confidence: 0.9, Weight: 1})
	nodeID, _ := k.AddContextNode(types.ContextNode{Type: types.NodeLanguage, Name: "go"})
	_, _ = k.AddGoal(types.UserGoal{Content: "ship weekly"})
	_, _ = k.AddFact(types.UserFact{Content: "likes dark mode"})
	k.SetActiveProject("splk")

	snap := k.Export()
	require.Equal(t, SchemaVersion, snap.Version)
	require.Contains(t, snap.Kernel.Rules, ruleID)
	require.Contains(t, snap.Kernel.Nodes, nodeID)
	require.Len(t, snap.Kernel.Goals, 1)
	require.Len(t, snap.Kernel.Facts, 1)
	require.Equal(t, "splk", snap.Kernel.ActiveProject)
}

func TestLoad_RoundTripsState(t *testing.T) {
	k1 := New()
	_, _ = k1.AddScopedRule(types.ScopedRule{Content: "x", Confidence: 0.9, Weight: 1})
	snap := k1.Export()

	k2 := New()
	err := k2.Load(snap)
	require.NoError(t, err)

	rules := k2.AllScopedRules()
	require.Len(t, rules, 1)
	require.Equal(t, "x", rules[0].Content)
}

func TestLoad_RejectsMajorVersionMismatch(t *testing.T) {
	k := New()
	snap := k.Export()
	snap.Version = "99.0.0"

	err := k.Load(snap)
	require.Error(t, err)
	kerr, ok := err.(*types.KernelError)
	require.True(t, ok)
	require.Equal(t, types.KindVersionMismatch, kerr.Kind)
}

func TestLoad_AcceptsMinorVersionDifference(t *testing.T) {
	k := New()
	snap := k.Export()
	snap.Version = "1.9.9"

	err := k.Load(snap)
	require.NoError(t, err)
}

func TestSaveAndLoadFile_PlainJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	k1 := New()
	_, _ = k1.AddScopedRule(types.ScopedRule{Content: "plain", Confidence: 0.9, Weight: 1})
	require.NoError(t, k1.Save(path))

	k2 := New()
	require.NoError(t, k2.LoadFile(path))
	rules := k2.AllScopedRules()
	require.Len(t, rules, 1)
	require.Equal(t, "plain", rules[0].Content)
}

func TestSaveAndLoadFile_GzipSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json.gz")

	k1 := New()
	_, _ = k1.AddScopedRule(types.ScopedRule{Content: "gzipped", Confidence: 0.9, Weight: 1})
	require.NoError(t, k1.Save(path))

	k2 := New()
	require.NoError(t, k2.LoadFile(path))
	rules := k2.AllScopedRules()
	require.Len(t, rules, 1)
	require.Equal(t, "gzipped", rules[0].Content)
}

func TestLoadFile_MalformedPayloadIsIntegrityError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	k := New()
	err := k.LoadFile(path)
	require.Error(t, err)
	kerr, ok := err.(*types.KernelError)
	require.True(t, ok)
	require.Equal(t, types.KindIntegrity, kerr.Kind)
}
