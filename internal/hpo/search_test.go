// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package hpo

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/schriftgut/internal/dataset"
	"github.com/schriftgut/internal/mlruntime"
	"github.com/schriftgut/internal/trainer"
)

// scriptedRuntime returns a scripted validation F1 per trial and a fixed
// test F1, failing the trial numbers listed in failOn.
type scriptedRuntime struct {
	valF1s  []float64
	failOn  map[int]bool
	trainN  int
	evalN   int
	current int
}

func (f *scriptedRuntime) Info(ctx context.Context) (mlruntime.Info, error) {
	return mlruntime.Info{Device: "cpu", MaxLength: 512}, nil
}

func (f *scriptedRuntime) Train(ctx context.Context, req mlruntime.TrainRequest) (mlruntime.TrainResult, error) {
	f.current = f.trainN
	f.trainN++
	if f.failOn[f.current] {
		return mlruntime.TrainResult{}, fmt.Errorf("scripted failure")
	}
	return mlruntime.TrainResult{FinalLoss: 0.5, RuntimeSeconds: 10}, nil
}

func (f *scriptedRuntime) Evaluate(ctx context.Context, req mlruntime.EvalRequest) (mlruntime.Metrics, error) {
	f.evalN++
	f1 := 0.5
	if f.current < len(f.valF1s) {
		f1 = f.valF1s[f.current]
	}
	return mlruntime.Metrics{Loss: 0.4, Accuracy: f1, F1: f1, Precision: f1, Recall: f1}, nil
}

func (f *scriptedRuntime) Predict(ctx context.Context, req mlruntime.PredictRequest) (mlruntime.PredictResult, error) {
	return mlruntime.PredictResult{}, fmt.Errorf("not used")
}

func testSpace(t *testing.T) Space {
	t.Helper()
	space, err := ParseSpace(map[string]ParamSpec{
		"learning_rate":    {Type: "float", Args: []float64{1e-5, 5e-5}, Log: true},
		"weight_decay":     {Type: "float", Args: []float64{0, 0.3}},
		"warmup_steps":     {Type: "int", Args: []float64{0, 500}},
		"train_batch_size": {Type: "categorical", Args: []float64{4, 8}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return space
}

func writeDataCSV(t *testing.T) string {
	t.Helper()
	var records []dataset.Record
	for _, label := range []string{"invoice", "contract"} {
		for i := 0; i < 10; i++ {
			records = append(records, dataset.Record{
				Text:  fmt.Sprintf("%s beleg nummer %d", label, i),
				Label: label,
			})
		}
	}
	path := filepath.Join(t.TempDir(), "all_data.csv")
	if err := dataset.WriteCSV(path, records); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestSearch(t *testing.T, rt mlruntime.Runtime) (*Search, *Store) {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "study.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewSearch(trainer.New(rt), store, NewRandomSampler(1)), store
}

func baseOptions(t *testing.T, space Space) Options {
	return Options{
		ModelName:    "deepset/gbert-base",
		DataCSV:      writeDataCSV(t),
		ModelsDir:    t.TempDir(),
		Trials:       5,
		Epochs:       2,
		KeepTopN:     2,
		Space:        space,
		LearningRate: 2e-5,
	}
}

func TestRun_KeepsOnlyTopN(t *testing.T) {
	rt := &scriptedRuntime{valF1s: []float64{0.6, 0.9, 0.7, 0.95, 0.5}}
	s, _ := newTestSearch(t, rt)
	opts := baseOptions(t, testSpace(t))

	res, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.BestTrial.Number != 3 || res.BestTrial.Value != 0.95 {
		t.Errorf("best trial = %d value=%v, want trial 3 at 0.95", res.BestTrial.Number, res.BestTrial.Value)
	}
	if res.TrialsKept > opts.KeepTopN {
		t.Errorf("kept %d trial dirs, cap is %d", res.TrialsKept, opts.KeepTopN)
	}

	hpoDir := filepath.Join(opts.ModelsDir, "deepset_gbert-base", "hpo")
	for _, name := range []string{"trial_1", "trial_3"} {
		if _, err := os.Stat(filepath.Join(hpoDir, name)); err != nil {
			t.Errorf("top trial dir %s missing: %v", name, err)
		}
	}
	for _, name := range []string{"trial_0", "trial_2", "trial_4"} {
		if _, err := os.Stat(filepath.Join(hpoDir, name)); !os.IsNotExist(err) {
			t.Errorf("pruned trial dir %s still present", name)
		}
	}
}

func TestRun_WritesArtifacts(t *testing.T) {
	rt := &scriptedRuntime{valF1s: []float64{0.6, 0.9, 0.7, 0.95, 0.5}}
	s, _ := newTestSearch(t, rt)
	opts := baseOptions(t, testSpace(t))

	if _, err := s.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	hpoDir := filepath.Join(opts.ModelsDir, "deepset_gbert-base", "hpo")
	for _, name := range []string{BestParamsFileName, ResultsFileName, BestTrialsFileName} {
		if _, err := os.Stat(filepath.Join(hpoDir, name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}

	f, err := os.Open(filepath.Join(hpoDir, ResultsFileName))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 { // header + 5 trials
		t.Errorf("results csv has %d rows, want 6", len(rows))
	}
}

func TestRun_FailedTrialRecordedNotFatal(t *testing.T) {
	rt := &scriptedRuntime{valF1s: []float64{0.6, 0, 0.7, 0.8, 0.5}, failOn: map[int]bool{1: true}}
	s, store := newTestSearch(t, rt)
	opts := baseOptions(t, testSpace(t))

	res, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.BestTrial.Number != 3 {
		t.Errorf("best trial = %d, want 3", res.BestTrial.Number)
	}

	trials, err := store.Trials("deepset_gbert-base")
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 5 {
		t.Fatalf("recorded %d trials, want 5", len(trials))
	}
	if trials[1].State != StateFailed {
		t.Errorf("trial 1 state = %q, want %q", trials[1].State, StateFailed)
	}
}

func TestRun_ResumesTrialNumbering(t *testing.T) {
	rt := &scriptedRuntime{valF1s: []float64{0.6, 0.7, 0.8, 0.9}}
	s, store := newTestSearch(t, rt)
	opts := baseOptions(t, testSpace(t))
	opts.Trials = 2

	if _, err := s.Run(context.Background(), opts); err != nil {
		t.Fatalf("first invocation failed: %v", err)
	}
	if _, err := s.Run(context.Background(), opts); err != nil {
		t.Fatalf("second invocation failed: %v", err)
	}

	trials, err := store.Trials("deepset_gbert-base")
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 4 {
		t.Fatalf("recorded %d trials across invocations, want 4", len(trials))
	}
	if trials[3].Number != 3 {
		t.Errorf("last trial number = %d, want 3", trials[3].Number)
	}
}

func TestParseSpace_Validation(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]ParamSpec
	}{
		{"empty space", map[string]ParamSpec{}},
		{"bad type", map[string]ParamSpec{"x": {Type: "gaussian", Args: []float64{0, 1}}}},
		{"range arity", map[string]ParamSpec{"x": {Type: "float", Args: []float64{1}}}},
		{"inverted range", map[string]ParamSpec{"x": {Type: "int", Args: []float64{5, 1}}}},
		{"log with zero bound", map[string]ParamSpec{"x": {Type: "float", Args: []float64{0, 1}, Log: true}}},
		{"empty categorical", map[string]ParamSpec{"x": {Type: "categorical"}}},
	}
	for _, tc := range cases {
		if _, err := ParseSpace(tc.raw); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestRandomSampler_BoundsAndDeterminism(t *testing.T) {
	space := testSpace(t)

	a := NewRandomSampler(7)
	b := NewRandomSampler(7)
	for i := 0; i < 50; i++ {
		pa, pb := a.Sample(space), b.Sample(space)
		for name := range pa {
			if pa[name] != pb[name] {
				t.Fatalf("same seed diverged at draw %d on %s", i, name)
			}
		}

		lr := pa["learning_rate"]
		if lr < 1e-5 || lr > 5e-5 {
			t.Errorf("learning_rate %v out of range", lr)
		}
		ws := pa["warmup_steps"]
		if ws != float64(int(ws)) || ws < 0 || ws > 500 {
			t.Errorf("warmup_steps %v not an int in range", ws)
		}
		if bs := pa["train_batch_size"]; bs != 4 && bs != 8 {
			t.Errorf("train_batch_size %v not a listed choice", bs)
		}
	}
}

func TestUpdateLeaderboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.csv")

	if err := UpdateLeaderboard(path, LeaderboardEntry{Model: "a", Study: "a", BestValue: 0.7}); err != nil {
		t.Fatal(err)
	}
	if err := UpdateLeaderboard(path, LeaderboardEntry{Model: "b", Study: "b", BestValue: 0.9}); err != nil {
		t.Fatal(err)
	}
	// Re-running model a replaces its row instead of appending.
	if err := UpdateLeaderboard(path, LeaderboardEntry{Model: "a", Study: "a", BestValue: 0.95}); err != nil {
		t.Fatal(err)
	}

	entries, err := readLeaderboard(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("leaderboard has %d rows, want 2", len(entries))
	}
	if entries[0].Model != "a" || entries[0].BestValue != 0.95 {
		t.Errorf("leaderboard not sorted by best value: %+v", entries)
	}
}
