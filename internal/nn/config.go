package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/nnue/internal/tensor"
)

// ErrConfig reports an invalid network configuration.
var ErrConfig = errors.New("nn: invalid config")

// LayerConfig describes one dense layer. Activation is ignored on the last
// layer, which produces the raw output.
type LayerConfig struct {
	Size       int
	Activation tensor.Activation
}

// Config describes a network.
type Config struct {
	Inputs       int               // Size of the sparse feature space
	MaxActive    int               // Active feature slots per sample
	Hidden       int               // Feature transformer width per perspective
	Dual         bool              // Two perspectives sharing the transformer
	FTActivation tensor.Activation // Applied to the transformer output
	Pairwise     bool              // Multiply the two halves of the activated transformer output
	Layers       []LayerConfig     // Dense layers; the last one must have Size 1
	Buckets      int               // Output buckets per dense layer; 0 means 1
	MaxBatch     int               // Largest batch a step may use
	Seed         int64             // Weight initialization seed
}

// Simple returns the (inputs -> hidden)x2 -> 1 architecture with SCReLU.
func Simple(inputs, maxActive, hidden, maxBatch int) Config {
	return Config{
		Inputs:       inputs,
		MaxActive:    maxActive,
		Hidden:       hidden,
		Dual:         true,
		FTActivation: tensor.SCReLU,
		Layers:       []LayerConfig{{Size: 1}},
		Buckets:      1,
		MaxBatch:     maxBatch,
	}
}

func (c Config) withDefaults() Config {
	if c.Buckets == 0 {
		c.Buckets = 1
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.Inputs <= 0:
		return fmt.Errorf("%w: inputs %d", ErrConfig, c.Inputs)
	case c.MaxActive <= 0:
		return fmt.Errorf("%w: max active %d", ErrConfig, c.MaxActive)
	case c.Hidden <= 0:
		return fmt.Errorf("%w: hidden %d", ErrConfig, c.Hidden)
	case c.MaxBatch <= 0:
		return fmt.Errorf("%w: max batch %d", ErrConfig, c.MaxBatch)
	case c.Buckets < 1:
		return fmt.Errorf("%w: buckets %d", ErrConfig, c.Buckets)
	case !c.FTActivation.Valid():
		return fmt.Errorf("%w: feature transformer activation %d", ErrConfig, c.FTActivation)
	case len(c.Layers) == 0:
		return fmt.Errorf("%w: no dense layers", ErrConfig)
	}
	if c.Pairwise && c.transformerWidth()%2 != 0 {
		return fmt.Errorf("%w: pairwise product needs an even width, got %d", ErrConfig, c.transformerWidth())
	}
	for i, l := range c.Layers {
		if l.Size <= 0 {
			return fmt.Errorf("%w: layer %d size %d", ErrConfig, i, l.Size)
		}
		if i < len(c.Layers)-1 && !l.Activation.Valid() {
			return fmt.Errorf("%w: layer %d activation %d", ErrConfig, i, l.Activation)
		}
	}
	if last := c.Layers[len(c.Layers)-1]; last.Size != 1 {
		return fmt.Errorf("%w: output layer size %d, want 1", ErrConfig, last.Size)
	}
	return nil
}

// transformerWidth is the row width of the concatenated transformer output.
func (c Config) transformerWidth() int {
	if c.Dual {
		return 2 * c.Hidden
	}
	return c.Hidden
}

// inputWidth is the width fed to the first dense layer.
func (c Config) inputWidth() int {
	if c.Pairwise {
		return c.transformerWidth() / 2
	}
	return c.transformerWidth()
}

// NumParams returns the length of the flattened parameter vector.
func (c Config) NumParams() int {
	c = c.withDefaults()
	n := c.Inputs*c.Hidden + c.Hidden
	in := c.inputWidth()
	for _, l := range c.Layers {
		out := l.Size * c.Buckets
		n += out*in + out
		in = l.Size
	}
	return n
}
