package train

import (
	"fmt"
	"math"

	"github.com/born-ml/nnue/internal/optim"
)

// LRScheduler gives the learning rate for a superbatch.
type LRScheduler interface {
	LR(superbatch int) float32
}

// WDLScheduler gives the result weight of the training target for a
// superbatch within [first, last].
type WDLScheduler interface {
	WDL(superbatch, first, last int) float32
}

// ConstantLR uses the same rate throughout.
type ConstantLR struct {
	Value float32
}

// LR implements LRScheduler.
func (c ConstantLR) LR(int) float32 { return c.Value }

// StepLR multiplies the rate by Gamma every Step superbatches:
// Start·Gamma^((superbatch-1)/Step).
type StepLR struct {
	Start float32
	Gamma float32
	Step  int
}

// LR implements LRScheduler.
func (s StepLR) LR(superbatch int) float32 {
	if s.Step <= 0 || superbatch < 1 {
		return s.Start
	}
	steps := (superbatch - 1) / s.Step
	return s.Start * float32(math.Pow(float64(s.Gamma), float64(steps)))
}

// ConstantWDL uses the same result weight throughout.
type ConstantWDL struct {
	Value float32
}

// WDL implements WDLScheduler.
func (c ConstantWDL) WDL(int, int, int) float32 { return c.Value }

// LinearWDL interpolates from Start at the first superbatch to End at the last.
type LinearWDL struct {
	Start float32
	End   float32
}

// WDL implements WDLScheduler.
func (l LinearWDL) WDL(superbatch, first, last int) float32 {
	if last <= first {
		return l.Start
	}
	frac := float32(superbatch-first) / float32(last-first)
	return l.Start + (l.End-l.Start)*frac
}

// Schedule describes one training run.
type Schedule struct {
	NetID                string
	EvalScale            float32 // Centipawns per unit of sigmoid input (default: 400)
	FTRegularisation     float32 // Weight of the transformer activation penalty
	BatchSize            int
	BatchesPerSuperbatch int
	StartSuperbatch      int // First superbatch, 1 for a fresh run
	EndSuperbatch        int // Last superbatch, inclusive
	LR                   LRScheduler
	WDL                  WDLScheduler
	LossPower            float32 // Exponent of the loss (default: 2)
	SaveRate             int     // Checkpoint every SaveRate superbatches, 0 saves only at the end
	Optimizer            optim.AdamWConfig
}

// LocalSettings holds machine-specific settings that do not affect results.
type LocalSettings struct {
	Threads         int    // CPU backend worker count, 0 uses every core
	OutputDirectory string // Checkpoint root
	BatchQueueSize  int    // Batches packed ahead of the trainer (default: 32)
}

// DefaultSchedule returns a short schedule suitable for small experiments.
func DefaultSchedule(netID string) Schedule {
	return Schedule{
		NetID:                netID,
		EvalScale:            400,
		BatchSize:            16384,
		BatchesPerSuperbatch: 6104,
		StartSuperbatch:      1,
		EndSuperbatch:        10,
		LR:                   StepLR{Start: 0.001, Gamma: 0.1, Step: 4},
		WDL:                  ConstantWDL{Value: 0.5},
		LossPower:            2,
		SaveRate:             5,
		Optimizer:            optim.DefaultAdamWConfig(),
	}
}

func (s Schedule) withDefaults() Schedule {
	if s.EvalScale == 0 {
		s.EvalScale = 400
	}
	if s.LossPower == 0 {
		s.LossPower = 2
	}
	if s.StartSuperbatch == 0 {
		s.StartSuperbatch = 1
	}
	if s.LR == nil {
		s.LR = ConstantLR{Value: 0.001}
	}
	if s.WDL == nil {
		s.WDL = ConstantWDL{}
	}
	return s
}

// Validate checks the schedule with defaults applied.
func (s Schedule) Validate() error {
	s = s.withDefaults()
	switch {
	case s.NetID == "":
		return fmt.Errorf("train: schedule: empty net id")
	case s.EvalScale < 0:
		return fmt.Errorf("train: schedule: eval scale %v", s.EvalScale)
	case s.BatchSize <= 0:
		return fmt.Errorf("train: schedule: batch size %d", s.BatchSize)
	case s.BatchesPerSuperbatch <= 0:
		return fmt.Errorf("train: schedule: %d batches per superbatch", s.BatchesPerSuperbatch)
	case s.StartSuperbatch < 1 || s.EndSuperbatch < s.StartSuperbatch:
		return fmt.Errorf("train: schedule: superbatches [%d, %d]", s.StartSuperbatch, s.EndSuperbatch)
	case s.SaveRate < 0:
		return fmt.Errorf("train: schedule: save rate %d", s.SaveRate)
	case s.LossPower < 0:
		return fmt.Errorf("train: schedule: loss power %v", s.LossPower)
	case s.FTRegularisation < 0:
		return fmt.Errorf("train: schedule: ft regularisation %v", s.FTRegularisation)
	}
	return nil
}

// Validate checks the settings. Zero values are replaced by defaults.
func (l LocalSettings) Validate() error {
	if l.Threads < 0 {
		return fmt.Errorf("train: settings: %d threads", l.Threads)
	}
	return nil
}

func (l LocalSettings) withDefaults() LocalSettings {
	if l.BatchQueueSize <= 0 {
		l.BatchQueueSize = 32
	}
	if l.OutputDirectory == "" {
		l.OutputDirectory = "checkpoints"
	}
	return l
}
