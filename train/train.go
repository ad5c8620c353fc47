// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train runs NNUE training: data loading, schedules, the superbatch
// loop and checkpoints.
//
// Example:
//
//	samples, err := train.LoadFiles("positions.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	net, _ := nn.New(cpu.New(), nn.Simple(768, 32, 256, 16384))
//	t, _ := train.New(net, train.DefaultSchedule("net"), train.LocalSettings{})
//	err = t.Run(ctx, train.NewSliceSource(samples, true, 1))
package train

import (
	"log/slog"

	"github.com/born-ml/nnue/internal/checkpoint"
	"github.com/born-ml/nnue/internal/chess"
	"github.com/born-ml/nnue/internal/data"
	"github.com/born-ml/nnue/internal/nn"
	"github.com/born-ml/nnue/internal/train"
)

// Trainer drives a network through a schedule.
type Trainer = train.Trainer

// Schedule describes one training run.
type Schedule = train.Schedule

// LocalSettings holds machine-specific settings.
type LocalSettings = train.LocalSettings

// Report summarizes one finished superbatch.
type Report = train.Report

// Option configures a Trainer.
type Option = train.Option

// Learning rate and WDL schedulers.
type (
	LRScheduler  = train.LRScheduler
	WDLScheduler = train.WDLScheduler
	ConstantLR   = train.ConstantLR
	StepLR       = train.StepLR
	ConstantWDL  = train.ConstantWDL
	LinearWDL    = train.LinearWDL
)

// Sample is one labelled position.
type Sample = data.Sample

// Source yields training samples.
type Source = data.Source

// Snapshot is a saved training state.
type Snapshot = checkpoint.Snapshot

// Policy routes positions to output buckets.
type Policy = chess.Policy

// ErrNoSamples is returned when a run has no data.
var ErrNoSamples = data.ErrNoSamples

// New creates a trainer.
func New(net *nn.Network, sched Schedule, settings LocalSettings, opts ...Option) (*Trainer, error) {
	return train.New(net, sched, settings, opts...)
}

// DefaultSchedule returns a short schedule for small experiments.
func DefaultSchedule(netID string) Schedule {
	return train.DefaultSchedule(netID)
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return train.WithLogger(l)
}

// WithPolicy sets the output bucket policy.
func WithPolicy(p Policy) Option {
	return train.WithPolicy(p)
}

// WithReporter registers a callback invoked after every superbatch.
func WithReporter(f func(Report)) Option {
	return train.WithReporter(f)
}

// PolicyByName returns the bucket policy called name ("single", "material4", "material8", "ocb").
func PolicyByName(name string) (Policy, bool) {
	return chess.PolicyByName(name)
}

// LoadFiles reads samples from text files.
func LoadFiles(paths ...string) ([]Sample, error) {
	return data.LoadFiles(paths...)
}

// NewSliceSource cycles over samples forever, optionally reshuffling every pass.
func NewSliceSource(samples []Sample, shuffle bool, seed int64) Source {
	return data.NewSliceSource(samples, shuffle, seed)
}

// NewFiniteSource yields samples once.
func NewFiniteSource(samples []Sample) Source {
	return data.NewFiniteSource(samples)
}

// LoadCheckpoint reads a checkpoint from a file or checkpoint directory.
func LoadCheckpoint(path string) (*Snapshot, error) {
	return checkpoint.Load(path)
}
