// Package main provides the nnue command: train networks from text position
// files and evaluate checkpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/born-ml/nnue/internal/backend/cpu"
	"github.com/born-ml/nnue/internal/backend/webgpu"
	"github.com/born-ml/nnue/internal/checkpoint"
	"github.com/born-ml/nnue/internal/chess"
	"github.com/born-ml/nnue/internal/data"
	"github.com/born-ml/nnue/internal/nn"
	"github.com/born-ml/nnue/internal/parallel"
	"github.com/born-ml/nnue/internal/tensor"
	"github.com/born-ml/nnue/internal/train"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("nnue %s\n", version)
		return
	case "train":
		err = runTrain(os.Args[2:])
	case "eval":
		err = runEval(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "nnue: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("nnue - NNUE trainer")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  train      Train a network from text position files")
	fmt.Println("  eval       Evaluate FENs with a checkpoint")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("Run 'nnue <command> -h' for command flags.")
}

// common holds the flags shared by train and eval. Eval must see the same
// architecture the checkpoint was trained with.
type common struct {
	hidden  int
	buckets string
	backend string
	threads int
	batch   int
	scale   float64
	verbose bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.IntVar(&c.hidden, "hidden", 256, "feature transformer width per perspective")
	fs.StringVar(&c.buckets, "buckets", "single", "output bucket policy: single, material4, material8, ocb")
	fs.StringVar(&c.backend, "backend", "cpu", "compute backend: cpu, webgpu")
	fs.IntVar(&c.threads, "threads", 0, "CPU worker threads, 0 uses every core")
	fs.IntVar(&c.batch, "batch", 16384, "positions per batch")
	fs.Float64Var(&c.scale, "eval-scale", 400, "centipawns per unit of network output")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

func (c *common) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *common) policy() (chess.Policy, error) {
	p, ok := chess.PolicyByName(c.buckets)
	if !ok {
		return nil, fmt.Errorf("unknown bucket policy %q", c.buckets)
	}
	return p, nil
}

func (c *common) newBackend() (tensor.Backend, error) {
	switch c.backend {
	case "cpu":
		return cpu.NewWithConfig(cpu.Config{Parallel: parallel.DefaultConfig().WithWorkers(c.threads)}), nil
	case "webgpu", "gpu":
		b, err := webgpu.New()
		if err != nil {
			return nil, fmt.Errorf("webgpu backend: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.backend)
	}
}

func (c *common) network(backend tensor.Backend, policy chess.Policy, maxBatch int) (*nn.Network, error) {
	input := chess.Chess768{}
	cfg := nn.Simple(input.Size(), input.MaxActive(), c.hidden, maxBatch)
	cfg.Buckets = policy.Buckets()
	return nn.New(backend, cfg)
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	var c common
	c.register(fs)
	var (
		netID        = fs.String("id", "net", "network id used for checkpoint names")
		superbatches = fs.Int("superbatches", 10, "last superbatch to train")
		batches      = fs.Int("batches-per-superbatch", 6104, "batches per superbatch")
		lr           = fs.Float64("lr", 0.001, "initial learning rate")
		lrGamma      = fs.Float64("lr-gamma", 0.1, "learning rate decay factor")
		lrStep       = fs.Int("lr-step", 4, "superbatches between learning rate drops")
		wdl          = fs.Float64("wdl", 0.5, "weight of the game result in the target")
		ftReg        = fs.Float64("ft-reg", 0, "feature transformer activation penalty")
		saveRate     = fs.Int("save-rate", 5, "checkpoint every N superbatches")
		output       = fs.String("output", "checkpoints", "checkpoint directory")
		resume       = fs.String("resume", "", "checkpoint to resume from")
		queue        = fs.Int("queue", 32, "batches packed ahead of the trainer")
		shuffle      = fs.Bool("shuffle", true, "reshuffle the data every pass")
		seed         = fs.Int64("seed", 1, "shuffle seed")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("train: at least one data file is required")
	}
	logger := c.logger()

	samples, err := data.LoadFiles(fs.Args()...)
	if err != nil {
		return err
	}
	logger.Info("data loaded", "files", fs.NArg(), "positions", len(samples))

	policy, err := c.policy()
	if err != nil {
		return err
	}
	backend, err := c.newBackend()
	if err != nil {
		return err
	}
	defer backend.Release()

	net, err := c.network(backend, policy, c.batch)
	if err != nil {
		return err
	}

	sched := train.DefaultSchedule(*netID)
	sched.EvalScale = float32(c.scale)
	sched.BatchSize = c.batch
	sched.BatchesPerSuperbatch = *batches
	sched.EndSuperbatch = *superbatches
	sched.LR = train.StepLR{Start: float32(*lr), Gamma: float32(*lrGamma), Step: *lrStep}
	sched.WDL = train.ConstantWDL{Value: float32(*wdl)}
	sched.FTRegularisation = float32(*ftReg)
	sched.SaveRate = *saveRate

	trainer, err := train.New(net, sched, train.LocalSettings{
		Threads:         c.threads,
		OutputDirectory: *output,
		BatchQueueSize:  *queue,
	}, train.WithLogger(logger), train.WithPolicy(policy))
	if err != nil {
		return err
	}
	if *resume != "" {
		snap, err := checkpoint.Load(*resume)
		if err != nil {
			return err
		}
		if err := trainer.Resume(snap); err != nil {
			return err
		}
		logger.Info("resumed", "checkpoint", *resume, "superbatch", snap.Superbatch, "step", snap.Step)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return trainer.Run(ctx, data.NewSliceSource(samples, *shuffle, *seed))
}

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	var c common
	c.register(fs)
	path := fs.String("checkpoint", "", "checkpoint file or directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("eval: -checkpoint is required")
	}
	fens := fs.Args()
	if len(fens) == 0 {
		return errors.New("eval: at least one FEN is required")
	}

	snap, err := checkpoint.Load(*path)
	if err != nil {
		return err
	}
	policy, err := c.policy()
	if err != nil {
		return err
	}
	backend, err := c.newBackend()
	if err != nil {
		return err
	}
	defer backend.Release()

	net, err := c.network(backend, policy, 1)
	if err != nil {
		return err
	}
	if err := snap.Restore(net.Params()); err != nil {
		return fmt.Errorf("eval: checkpoint does not match -hidden %d and -buckets %s: %w", c.hidden, c.buckets, err)
	}

	netID := snap.NetID
	if netID == "" {
		netID = "eval"
	}
	sched := train.DefaultSchedule(netID)
	sched.EvalScale = float32(c.scale)
	sched.BatchSize = 1
	trainer, err := train.New(net, sched, train.LocalSettings{}, train.WithLogger(c.logger()), train.WithPolicy(policy))
	if err != nil {
		return err
	}
	for _, fen := range fens {
		score, err := trainer.Eval(strings.TrimSpace(fen))
		if err != nil {
			return err
		}
		fmt.Printf("%s: %.0f\n", fen, score)
	}
	return nil
}
