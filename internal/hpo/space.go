// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package hpo runs hyperparameter search: sample a trial from the search
// space, fine-tune with it, score it on validation F1, record it in the
// study store and keep only the best few trial directories on disk.
package hpo

import (
	"fmt"
	"sort"
)

// ParamKind distinguishes how a dimension is sampled.
type ParamKind string

const (
	KindFloat       ParamKind = "float"
	KindInt         ParamKind = "int"
	KindCategorical ParamKind = "categorical"
)

// Param is one searchable dimension. Float and int dimensions use
// Args[0]..Args[1] as the inclusive range; categorical dimensions pick
// from the full Args list. Log switches float sampling to log-uniform.
type Param struct {
	Name string
	Kind ParamKind
	Args []float64
	Log  bool
}

// Space is the ordered set of searchable dimensions. Order is fixed by
// sorted name so a seeded sampler reproduces the same trial sequence.
type Space []Param

// Params is one sampled trial configuration, keyed by dimension name.
// Integer and categorical dimensions are stored as their float value.
type Params map[string]float64

// ParamSpec is the config-file shape of one dimension.
type ParamSpec struct {
	Type string    `mapstructure:"type" yaml:"type"`
	Args []float64 `mapstructure:"args" yaml:"args"`
	Log  bool      `mapstructure:"log" yaml:"log"`
}

// ParseSpace validates and orders a search-space definition from config.
func ParseSpace(raw map[string]ParamSpec) (Space, error) {
	var space Space
	for name, p := range raw {
		param := Param{Name: name, Args: p.Args, Log: p.Log}
		switch ParamKind(p.Type) {
		case KindFloat, KindInt:
			if len(p.Args) != 2 {
				return nil, fmt.Errorf("param %q: range type %q needs exactly 2 args, got %d", name, p.Type, len(p.Args))
			}
			if p.Args[0] > p.Args[1] {
				return nil, fmt.Errorf("param %q: low %v exceeds high %v", name, p.Args[0], p.Args[1])
			}
			if p.Log && p.Args[0] <= 0 {
				return nil, fmt.Errorf("param %q: log sampling needs a positive lower bound", name)
			}
			param.Kind = ParamKind(p.Type)
		case KindCategorical:
			if len(p.Args) == 0 {
				return nil, fmt.Errorf("param %q: categorical needs at least one choice", name)
			}
			param.Kind = KindCategorical
		default:
			return nil, fmt.Errorf("param %q: unknown type %q", name, p.Type)
		}
		space = append(space, param)
	}
	if len(space) == 0 {
		return nil, fmt.Errorf("search space is empty")
	}
	sort.Slice(space, func(i, j int) bool { return space[i].Name < space[j].Name })
	return space, nil
}

// Float reads a dimension value, falling back to def when the space does
// not search that dimension.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Int reads an integer dimension value with a fallback.
func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(v)
	}
	return def
}
