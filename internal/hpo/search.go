// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package hpo

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/schriftgut/internal/split"
	"github.com/schriftgut/internal/trainer"
)

// Artifact names written into a study's hpo directory.
const (
	BestParamsFileName = "best_hyperparams.json"
	ResultsFileName    = "hpo_results.csv"
	BestTrialsFileName = "best_trials.json"
)

// Options configures one search invocation. Trials are added to the study
// recorded in the store, so re-running after an interruption continues the
// numbering instead of starting over.
type Options struct {
	ModelName string
	DataCSV   string
	ModelsDir string // trial dirs land under <ModelsDir>/<model>/hpo

	Trials   int // trials to run in this invocation
	Epochs   int // shortened budget per trial
	KeepTopN int // trial directories retained on disk, default 2

	Space Space
	Split split.Config

	// Fallbacks for dimensions the space does not search.
	LearningRate          float64
	WeightDecay           float64
	WarmupSteps           int
	EarlyStoppingPatience int
}

// Result summarizes a finished search invocation.
type Result struct {
	Study      string
	BestTrial  Trial
	BestDir    string
	TrialsRun  int
	TrialsKept int
}

// Search drives trials through a Trainer and records them in a Store.
type Search struct {
	trainer *trainer.Trainer
	store   *Store
	sampler Sampler
}

func NewSearch(t *trainer.Trainer, store *Store, sampler Sampler) *Search {
	return &Search{trainer: t, store: store, sampler: sampler}
}

// Run executes opts.Trials trials, maximizing validation F1. After every
// trial the on-disk trial set is pruned to the best KeepTopN; a failed
// trial is recorded and skipped, never fatal to the study.
func (s *Search) Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Trials <= 0 {
		return Result{}, fmt.Errorf("trial count must be positive")
	}
	if opts.KeepTopN <= 0 {
		opts.KeepTopN = 2
	}

	study := studyName(opts.ModelName)
	hpoDir := filepath.Join(opts.ModelsDir, study, "hpo")
	if err := os.MkdirAll(hpoDir, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create hpo dir: %w", err)
	}

	start, err := s.store.NextTrialNumber(study)
	if err != nil {
		return Result{}, err
	}
	if start > 0 {
		log.Printf("Run: study=%s resuming at trial=%d", study, start)
	}

	for i := 0; i < opts.Trials; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		number := start + i
		params := s.sampler.Sample(opts.Space)
		trialDir := filepath.Join(hpoDir, fmt.Sprintf("trial_%d", number))

		var dropout *float64
		if v, ok := params["dropout"]; ok {
			dropout = &v
		}

		report, err := s.trainer.Run(ctx, trainer.Options{
			ModelName:             opts.ModelName,
			SaveDir:               trialDir,
			DataCSV:               opts.DataCSV,
			LearningRate:          params.Float("learning_rate", opts.LearningRate),
			Epochs:                opts.Epochs,
			WeightDecay:           params.Float("weight_decay", opts.WeightDecay),
			WarmupSteps:           params.Int("warmup_steps", opts.WarmupSteps),
			EarlyStoppingPatience: opts.EarlyStoppingPatience,
			Dropout:               dropout,
			TrainBatchSize:        params.Int("train_batch_size", 0),
			GradAccumulationSteps: params.Int("gradient_accumulation_steps", 0),
			Split:                 opts.Split,
		})

		t := Trial{Study: study, Number: number, Params: params, Dir: trialDir}
		if err != nil {
			log.Printf("Run: study=%s trial=%d failed err=%v", study, number, err)
			t.State = StateFailed
			os.RemoveAll(trialDir)
		} else {
			t.State = StateComplete
			t.Value = report.Phases.Validation.Metrics.ValidationF1
			log.Printf("Run: study=%s trial=%d validationF1=%.4f", study, number, t.Value)
		}
		if err := s.store.RecordTrial(t); err != nil {
			return Result{}, err
		}

		if err := s.pruneTrialDirs(study, hpoDir, opts.KeepTopN); err != nil {
			return Result{}, err
		}
	}

	completed, err := s.store.CompletedTrials(study)
	if err != nil {
		return Result{}, err
	}
	if len(completed) == 0 {
		return Result{}, fmt.Errorf("study %s has no completed trials", study)
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].Value > completed[j].Value })
	best := completed[0]

	if err := s.writeArtifacts(hpoDir, opts, best, completed); err != nil {
		return Result{}, err
	}

	kept, err := countTrialDirs(hpoDir)
	if err != nil {
		return Result{}, err
	}
	log.Printf("Run: study=%s done bestTrial=%d bestF1=%.4f kept=%d", study, best.Number, best.Value, kept)
	return Result{Study: study, BestTrial: best, BestDir: best.Dir, TrialsRun: opts.Trials, TrialsKept: kept}, nil
}

// pruneTrialDirs removes trial directories outside the study's current
// top-N by objective value. Directories are ranked from the store, so
// stale dirs from crashed earlier runs are pruned too.
func (s *Search) pruneTrialDirs(study, hpoDir string, keepTopN int) error {
	completed, err := s.store.CompletedTrials(study)
	if err != nil {
		return err
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].Value > completed[j].Value })

	keep := map[string]bool{}
	for i, t := range completed {
		if i >= keepTopN {
			break
		}
		keep[fmt.Sprintf("trial_%d", t.Number)] = true
	}

	entries, err := os.ReadDir(hpoDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "trial_") || keep[e.Name()] {
			continue
		}
		path := filepath.Join(hpoDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to prune %s: %w", path, err)
		}
		log.Printf("pruneTrialDirs: study=%s removed=%s", study, e.Name())
	}
	return nil
}

func (s *Search) writeArtifacts(hpoDir string, opts Options, best Trial, completed []Trial) error {
	bestParams := map[string]interface{}{
		"model":      opts.ModelName,
		"study":      best.Study,
		"best_trial": best.Number,
		"best_value": best.Value,
		"params":     best.Params,
	}
	if err := writeJSON(filepath.Join(hpoDir, BestParamsFileName), bestParams); err != nil {
		return err
	}

	topN := completed
	if len(topN) > opts.KeepTopN {
		topN = topN[:opts.KeepTopN]
	}
	type trialSummary struct {
		Number int     `json:"number"`
		Value  float64 `json:"value"`
		Params Params  `json:"params"`
		Dir    string  `json:"dir"`
	}
	summaries := make([]trialSummary, len(topN))
	for i, t := range topN {
		summaries[i] = trialSummary{Number: t.Number, Value: t.Value, Params: t.Params, Dir: t.Dir}
	}
	if err := writeJSON(filepath.Join(hpoDir, BestTrialsFileName), summaries); err != nil {
		return err
	}

	return s.writeResultsCSV(filepath.Join(hpoDir, ResultsFileName), best.Study, opts.Space)
}

// writeResultsCSV dumps the full trial history, one param per column in
// space order.
func (s *Search) writeResultsCSV(path, study string, space Space) error {
	trials, err := s.store.Trials(study)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"number", "state", "value"}
	for _, p := range space {
		header = append(header, p.Name)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trials {
		row := []string{
			strconv.Itoa(t.Number),
			t.State,
			strconv.FormatFloat(t.Value, 'g', -1, 64),
		}
		for _, p := range space {
			row = append(row, strconv.FormatFloat(t.Params[p.Name], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LeaderboardEntry is one model's best search outcome.
type LeaderboardEntry struct {
	Model     string
	Study     string
	BestValue float64
	BestTrial int
	BestDir   string
	UpdatedAt time.Time
}

// UpdateLeaderboard merges one entry into the cross-model leaderboard CSV,
// replacing any previous row for the same model and keeping the file
// sorted by best value, descending.
func UpdateLeaderboard(path string, entry LeaderboardEntry) error {
	entries, err := readLeaderboard(path)
	if err != nil {
		return err
	}

	replaced := false
	for i, e := range entries {
		if e.Model == entry.Model {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].BestValue > entries[j].BestValue })

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create leaderboard %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"model", "study", "best_value", "best_trial", "best_dir", "updated_at"}); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.Model,
			e.Study,
			strconv.FormatFloat(e.BestValue, 'g', -1, 64),
			strconv.Itoa(e.BestTrial),
			e.BestDir,
			e.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readLeaderboard(path string) ([]LeaderboardEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard %s: %w", path, err)
	}

	var out []LeaderboardEntry
	for i, row := range rows {
		if i == 0 || len(row) < 6 {
			continue
		}
		value, _ := strconv.ParseFloat(row[2], 64)
		trial, _ := strconv.Atoi(row[3])
		updated, _ := time.Parse(time.RFC3339, row[5])
		out = append(out, LeaderboardEntry{
			Model: row[0], Study: row[1], BestValue: value,
			BestTrial: trial, BestDir: row[4], UpdatedAt: updated,
		})
	}
	return out, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// studyName derives a filesystem-safe study name from a model identifier.
func studyName(modelName string) string {
	return strings.ReplaceAll(modelName, "/", "_")
}

func countTrialDirs(hpoDir string) (int, error) {
	entries, err := os.ReadDir(hpoDir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "trial_") {
			n++
		}
	}
	return n, nil
}
