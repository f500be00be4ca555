// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package split

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"

	"github.com/schriftgut/internal/dataset"
)

// ErrInsufficientClass is returned when a retained class cannot populate all
// three partitions. The population floor filters such classes up front, so
// hitting this means the configuration was relaxed past what stratification
// can support.
var ErrInsufficientClass = errors.New("insufficient class population for stratified split")

// Config controls the 3-way split. Zero values take the defaults below.
type Config struct {
	ValidationTestSize float64 // share carved off for validation+test, default 0.3
	TestProportion     float64 // test share of that pool, default 0.5
	Seed               int64   // shuffle seed, default 42
	MinClassCount      int     // classes below this population are dropped, default 3
}

func (c Config) withDefaults() Config {
	if c.ValidationTestSize <= 0 {
		c.ValidationTestSize = 0.3
	}
	if c.TestProportion <= 0 {
		c.TestProportion = 0.5
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.MinClassCount <= 0 {
		c.MinClassCount = 3
	}
	return c
}

// Row is one encoded example.
type Row struct {
	Text  string
	Label int
}

// Splits is the train/validation/test partition. The three parts are
// disjoint at the text level by construction.
type Splits struct {
	Train      []Row
	Validation []Row
	Test       []Row
}

// Prepare deduplicates, filters and stratifies records into three splits and
// fits the label encoding over the surviving classes.
//
// Steps, in order: drop rows with missing text or label; deduplicate on
// exact text (the data-leakage guard); drop classes below the population
// floor; fit the encoding over sorted class names; per class, shuffle with
// the fixed seed and allocate at least one row each to validation and test.
// The same input and seed always produce bit-identical splits.
func Prepare(records []dataset.Record, cfg Config) (Splits, LabelEncoding, error) {
	cfg = cfg.withDefaults()

	type item struct{ text, label string }
	seen := map[string]bool{}
	var items []item
	for _, r := range records {
		if strings.TrimSpace(r.Text) == "" || strings.TrimSpace(r.Label) == "" {
			continue
		}
		if seen[r.Text] {
			continue
		}
		seen[r.Text] = true
		items = append(items, item{r.Text, r.Label})
	}

	counts := map[string]int{}
	for _, it := range items {
		counts[it.label]++
	}

	var classes []string
	for label, n := range counts {
		if n >= cfg.MinClassCount {
			classes = append(classes, label)
		} else {
			log.Printf("Prepare: dropping label=%q examples=%d below floor=%d", label, n, cfg.MinClassCount)
		}
	}
	if len(classes) == 0 {
		return Splits{}, LabelEncoding{}, errors.New("no label class has enough examples to split")
	}

	enc := NewLabelEncoding(classes)

	groups := make([][]string, enc.Len())
	for _, it := range items {
		id, err := enc.Encode(it.label)
		if err != nil {
			continue // class was filtered
		}
		groups[id] = append(groups[id], it.text)
	}

	// One rng, classes visited in id (sorted-name) order: deterministic.
	rng := rand.New(rand.NewSource(cfg.Seed))

	var out Splits
	for id, texts := range groups {
		rng.Shuffle(len(texts), func(i, j int) {
			texts[i], texts[j] = texts[j], texts[i]
		})

		n := len(texts)
		pool := int(math.Round(float64(n) * cfg.ValidationTestSize))
		if pool < 2 {
			pool = 2
		}
		if pool > n-1 {
			pool = n - 1
		}
		if pool < 2 {
			name, _ := enc.Decode(id)
			return Splits{}, LabelEncoding{}, fmt.Errorf("%w: label %q has %d examples", ErrInsufficientClass, name, n)
		}

		testN := int(math.Round(float64(pool) * cfg.TestProportion))
		if testN < 1 {
			testN = 1
		}
		if testN > pool-1 {
			testN = pool - 1
		}
		valN := pool - testN
		trainN := n - pool

		for i, text := range texts {
			row := Row{Text: text, Label: id}
			switch {
			case i < trainN:
				out.Train = append(out.Train, row)
			case i < trainN+valN:
				out.Validation = append(out.Validation, row)
			default:
				out.Test = append(out.Test, row)
			}
		}
	}

	log.Printf("Prepare: classes=%d train=%d validation=%d test=%d", enc.Len(), len(out.Train), len(out.Validation), len(out.Test))
	return out, enc, nil
}

// LoadAndPrepare reads a dataset CSV and splits it. When labelOutDir is
// non-empty the fitted encoding is persisted there (training-time only;
// inference must load it from the model directory).
func LoadAndPrepare(csvPath, labelOutDir string, cfg Config) (Splits, LabelEncoding, error) {
	records, err := dataset.ReadCSV(csvPath)
	if err != nil {
		return Splits{}, LabelEncoding{}, err
	}

	splits, enc, err := Prepare(records, cfg)
	if err != nil {
		return Splits{}, LabelEncoding{}, err
	}

	if labelOutDir != "" {
		if err := enc.Save(labelOutDir); err != nil {
			return Splits{}, LabelEncoding{}, err
		}
	}
	return splits, enc, nil
}
