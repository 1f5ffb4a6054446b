package kernel

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/splk-dev/splk/internal/types"
)

// SchemaVersion is the export format's current version. A loaded
// payload whose major component differs is refused outright; minor and
// patch differences are accepted.
const SchemaVersion = "1.0.0"

// Snapshot is the on-disk export format: one JSON object holding every
// long-lived kernel map plus a schema version for compatibility checks.
type Snapshot struct {
	Version string `json:"version"`
	Kernel  struct {
		Rules         map[string]types.ScopedRule     `json:"rules"`
		Nodes         map[string]types.ContextNode     `json:"nodes"`
		ScopedRules   map[string]types.ScopedRule      `json:"scoped_rules,omitempty"`
		ContextNodes  map[string]types.ContextNode      `json:"context_nodes,omitempty"`
		Hypotheses    map[string]types.Hypothesis       `json:"hypotheses"`
		Goals         map[string]types.UserGoal         `json:"goals"`
		Facts         map[string]types.UserFact         `json:"facts"`
		Profile       types.UserProfile                 `json:"profile"`
		StyleVector   types.StyleVector                 `json:"style_vector"`
		ActiveProject string                            `json:"active_project,omitempty"`
		Metrics       Metrics                           `json:"metrics"`
	} `json:"kernel"`
}

// Export builds a Snapshot of the current kernel state.
func (k *Kernel) Export() Snapshot {
	k.lock()
	defer k.unlock()

	var snap Snapshot
	snap.Version = SchemaVersion
	snap.Kernel.Rules = make(map[string]types.ScopedRule, len(k.rules))
	snap.Kernel.Nodes = make(map[string]types.ContextNode, len(k.nodes))
	snap.Kernel.Hypotheses = make(map[string]types.Hypothesis, len(k.hypotheses))
	snap.Kernel.Goals = make(map[string]types.UserGoal, len(k.goals))
	snap.Kernel.Facts = make(map[string]types.UserFact, len(k.facts))

	for id, r := range k.rules {
		snap.Kernel.Rules[id] = *r
	}
	for id, n := range k.nodes {
		snap.Kernel.Nodes[id] = *n
	}
	for id, h := range k.hypotheses {
		snap.Kernel.Hypotheses[id] = *h
	}
	for id, g := range k.goals {
		snap.Kernel.Goals[id] = *g
	}
	for id, f := range k.facts {
		snap.Kernel.Facts[id] = *f
	}
	snap.Kernel.Profile = k.profile
	snap.Kernel.StyleVector = k.profile.StyleVector
	snap.Kernel.ActiveProject = k.activeProject

	m := Metrics{
		RulesByState: make(map[types.RuleState]int),
		NodesByType:  make(map[types.NodeType]int),
	}
	for _, r := range k.rules {
		m.RulesByState[r.State]++
	}
	for _, n := range k.nodes {
		m.NodesByType[n.Type]++
	}
	m.GoalCount = len(k.goals)
	m.FactCount = len(k.facts)
	m.HypothesisCount = len(k.hypotheses)
	m.InteractionsLogged = len(k.interactions)
	m.InteractionsArchived = k.interactionsArchived
	snap.Kernel.Metrics = m

	return snap
}

// Load replaces the kernel's long-lived maps with the contents of a
// Snapshot. A major-version mismatch is a fatal VersionMismatchError;
// minor/patch differences are accepted without complaint. Unknown keys
// in the source payload were already dropped by json.Unmarshal before
// this is called, per the "unknown keys ignored" contract.
func (k *Kernel) Load(snap Snapshot) error {
	if err := checkVersionCompatible(snap.Version); err != nil {
		return err
	}

	k.lock()
	defer k.unlock()

	k.rules = make(map[string]*types.ScopedRule, len(snap.Kernel.Rules))
	for id, r := range snap.Kernel.Rules {
		rCopy := r
		k.rules[id] = &rCopy
	}
	for id, r := range snap.Kernel.ScopedRules {
		rCopy := r
		k.rules[id] = &rCopy
	}

	k.nodes = make(map[string]*types.ContextNode, len(snap.Kernel.Nodes))
	for id, n := range snap.Kernel.Nodes {
		nCopy := n
		k.nodes[id] = &nCopy
	}
	for id, n := range snap.Kernel.ContextNodes {
		nCopy := n
		k.nodes[id] = &nCopy
	}

	k.hypotheses = make(map[string]*types.Hypothesis, len(snap.Kernel.Hypotheses))
	for id, h := range snap.Kernel.Hypotheses {
		hCopy := h
		k.hypotheses[id] = &hCopy
	}

	k.goals = make(map[string]*types.UserGoal, len(snap.Kernel.Goals))
	for id, g := range snap.Kernel.Goals {
		gCopy := g
		k.goals[id] = &gCopy
	}

	k.facts = make(map[string]*types.UserFact, len(snap.Kernel.Facts))
	for id, f := range snap.Kernel.Facts {
		fCopy := f
		k.facts[id] = &fCopy
	}

	k.profile = snap.Kernel.Profile
	if k.profile.ExpertiseLevels == nil && k.profile.Traits == nil && k.profile.StyleVector.Confidence == nil {
		// Older payload predating the profile/style_vector keys.
		k.profile = types.NewUserProfile()
	} else if k.profile.StyleVector.Confidence == nil {
		k.profile.StyleVector = snap.Kernel.StyleVector
	}

	k.activeProject = snap.Kernel.ActiveProject
	return nil
}

// checkVersionCompatible enforces the major-fatal, minor/patch-ok rule.
func checkVersionCompatible(version string) error {
	if version == "" {
		return types.NewKernelError(types.KindVersionMismatch, "export payload missing version", nil)
	}
	wantMajor, err := majorOf(SchemaVersion)
	if err != nil {
		return err
	}
	gotMajor, err := majorOf(version)
	if err != nil {
		return types.NewKernelError(types.KindVersionMismatch, "export payload has malformed version: "+version, nil)
	}
	if gotMajor != wantMajor {
		return types.NewKernelError(types.KindVersionMismatch,
			fmt.Sprintf("export major version %d incompatible with kernel major version %d", gotMajor, wantMajor),
			map[string]any{"payload_version": version, "kernel_version": SchemaVersion})
	}
	return nil
}

func majorOf(version string) (int, error) {
	parts := strings.SplitN(version, ".", 2)
	return strconv.Atoi(parts[0])
}

// Save serialises the kernel's Export snapshot to path as JSON, gzipped
// transparently when path ends in ".gz".
func (k *Kernel) Save(path string) error {
	snap := k.Export()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return types.NewKernelError(types.KindIntegrity, "marshaling snapshot: "+err.Error(), nil)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		gw := gzip.NewWriter(f)
		if _, err := gw.Write(data); err != nil {
			gw.Close()
			return err
		}
		return gw.Close()
	}
	_, err = f.Write(data)
	return err
}

// LoadFile reads and applies a Snapshot from path, transparently
// degzipping when the path ends in ".gz". A malformed or truncated
// payload is an IntegrityError; the kernel's prior state is left
// untouched in that case.
func (k *Kernel) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return types.NewKernelError(types.KindIntegrity, "opening gzip snapshot: "+err.Error(), nil)
		}
		defer gr.Close()
		r = gr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return types.NewKernelError(types.KindIntegrity, "reading snapshot: "+err.Error(), nil)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return types.NewKernelError(types.KindIntegrity, "parsing snapshot: "+err.Error(), nil)
	}

	return k.Load(snap)
}
