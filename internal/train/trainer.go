package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/born-ml/nnue/internal/checkpoint"
	"github.com/born-ml/nnue/internal/chess"
	"github.com/born-ml/nnue/internal/data"
	"github.com/born-ml/nnue/internal/nn"
	"github.com/born-ml/nnue/internal/optim"
	"github.com/born-ml/nnue/internal/tensor"
)

// Report summarizes one finished superbatch.
type Report struct {
	Superbatch int
	Loss       float32 // Mean loss per position
	LR         float32
	WDL        float32
	Positions  int
	Elapsed    time.Duration
	Checkpoint string // Path of the checkpoint written after this superbatch, if any
}

// Option configures a Trainer.
type Option func(*trainerOptions)

type trainerOptions struct {
	logger   *slog.Logger
	policy   chess.Policy
	reporter func(Report)
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *trainerOptions) {
		o.logger = l
	}
}

// WithPolicy sets the output bucket policy. The default is chess.Single.
func WithPolicy(p chess.Policy) Option {
	return func(o *trainerOptions) {
		o.policy = p
	}
}

// WithReporter registers a callback invoked after every superbatch.
func WithReporter(f func(Report)) Option {
	return func(o *trainerOptions) {
		o.reporter = f
	}
}

// Trainer drives a network through a schedule.
type Trainer struct {
	net      *nn.Network
	opt      *optim.AdamW
	sched    Schedule
	settings LocalSettings
	input    chess.Chess768

	// next is the first superbatch Run trains. It starts at the schedule's
	// StartSuperbatch, which stays the origin of the WDL ramp after a resume.
	next int

	logger   *slog.Logger
	policy   chess.Policy
	reporter func(Report)

	targets *tensor.Dense
	stmBuf  []int32
	nstmBuf []int32
}

// New creates a trainer. The network's batch capacity must cover the schedule's batch size.
func New(net *nn.Network, sched Schedule, settings LocalSettings, opts ...Option) (*Trainer, error) {
	if net == nil {
		return nil, errors.New("train: nil network")
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	sched = sched.withDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settings = settings.withDefaults()

	options := &trainerOptions{
		logger: slog.Default(),
		policy: chess.Single{},
	}
	for _, opt := range opts {
		opt(options)
	}

	cfg := net.Config()
	if sched.BatchSize > cfg.MaxBatch {
		return nil, fmt.Errorf("train: batch size %d exceeds network capacity %d", sched.BatchSize, cfg.MaxBatch)
	}
	if options.policy.Buckets() != cfg.Buckets {
		return nil, fmt.Errorf("train: policy has %d buckets, network %d", options.policy.Buckets(), cfg.Buckets)
	}

	opt, err := optim.NewAdamW(sched.Optimizer)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	return &Trainer{
		net:      net,
		opt:      opt,
		sched:    sched,
		settings: settings,
		logger:   options.logger,
		policy:   options.policy,
		reporter: options.reporter,
		targets:  tensor.NewDense(sched.BatchSize, 1),
		next:     sched.StartSuperbatch,
	}, nil
}

// Network returns the trained network.
func (t *Trainer) Network() *nn.Network { return t.net }

// Schedule returns the schedule with defaults applied.
func (t *Trainer) Schedule() Schedule { return t.sched }

// NextSuperbatch returns the superbatch the next Run starts with.
func (t *Trainer) NextSuperbatch() int { return t.next }

// Steps returns the number of optimizer steps taken.
func (t *Trainer) Steps() int64 { return t.opt.Steps() }

// Step trains on one batch and returns the mean loss per position.
func (t *Trainer) Step(b *data.Batch, lr, wdl float32) (float32, error) {
	if b.Size == 0 {
		return 0, fmt.Errorf("train: %w: empty batch", tensor.ErrInvalidArgument)
	}
	if err := b.Targets(wdl, t.sched.EvalScale, t.targets); err != nil {
		return 0, fmt.Errorf("train: %w", err)
	}

	stm, nstm := b.Features()
	t.net.ZeroGrad()
	if _, err := t.net.Forward(stm, nstm, b.Buckets[:b.Size]); err != nil {
		return 0, fmt.Errorf("train: %w", err)
	}
	loss, err := t.net.Loss(t.targets, t.sched.LossPower)
	if err != nil {
		return 0, fmt.Errorf("train: %w", err)
	}
	if err := t.net.Backward(t.sched.FTRegularisation); err != nil {
		return 0, fmt.Errorf("train: %w", err)
	}

	t.opt.SetGradScale(1 / float32(b.Size))
	if err := t.opt.Step(t.net.Backend(), t.net.Params(), lr); err != nil {
		return 0, fmt.Errorf("train: %w", err)
	}
	return loss / float32(b.Size), nil
}

// Run trains superbatches [NextSuperbatch, EndSuperbatch] from src. A finite
// source that runs dry ends the run early after a final checkpoint.
func (t *Trainer) Run(ctx context.Context, src data.Source) error {
	pf, err := data.NewPrefetcher(ctx, src, data.PrefetchConfig{
		BatchSize: t.sched.BatchSize,
		QueueSize: t.settings.BatchQueueSize,
		Policy:    t.policy,
	})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	defer pf.Close()

	t.logger.Info("training started",
		"net_id", t.sched.NetID,
		"backend", t.net.Backend().Name(),
		"params", t.net.Params().Len(),
		"superbatches", fmt.Sprintf("%d-%d", t.next, t.sched.EndSuperbatch),
		"batch_size", t.sched.BatchSize,
		"threads", t.settings.Threads)

	for sb := t.next; sb <= t.sched.EndSuperbatch; sb++ {
		report, drained, err := t.superbatch(ctx, pf, sb)
		if err != nil {
			return err
		}
		if report.Positions == 0 {
			if sb == t.next {
				return fmt.Errorf("train: %w", data.ErrNoSamples)
			}
			t.logger.Warn("data exhausted", "superbatch", sb)
			_, err := t.checkpoint(sb - 1)
			return err
		}

		last := drained || sb == t.sched.EndSuperbatch
		if last || (t.sched.SaveRate > 0 && sb%t.sched.SaveRate == 0) {
			if report.Checkpoint, err = t.checkpoint(sb); err != nil {
				return err
			}
		}

		t.logger.Info("superbatch",
			"superbatch", sb,
			"loss", report.Loss,
			"lr", report.LR,
			"wdl", report.WDL,
			"positions", report.Positions,
			"elapsed", report.Elapsed.Round(time.Millisecond))
		if t.reporter != nil {
			t.reporter(report)
		}
		if drained {
			t.logger.Warn("data exhausted", "superbatch", sb)
			return nil
		}
	}
	return nil
}

func (t *Trainer) superbatch(ctx context.Context, pf *data.Prefetcher, sb int) (Report, bool, error) {
	start := time.Now()
	report := Report{
		Superbatch: sb,
		LR:         t.sched.LR.LR(sb),
		WDL:        t.sched.WDL.WDL(sb, t.sched.StartSuperbatch, t.sched.EndSuperbatch),
	}

	var lossSum float64
	for i := 0; i < t.sched.BatchesPerSuperbatch; i++ {
		b, err := pf.Next(ctx)
		if errors.Is(err, io.EOF) {
			report.finish(lossSum, start)
			return report, true, nil
		}
		if err != nil {
			return report, false, fmt.Errorf("train: superbatch %d: %w", sb, err)
		}

		loss, err := t.Step(b, report.LR, report.WDL)
		n := b.Size
		pf.Recycle(b)
		if err != nil {
			return report, false, fmt.Errorf("train: superbatch %d batch %d: %w", sb, i, err)
		}
		lossSum += float64(loss) * float64(n)
		report.Positions += n
		t.logger.Debug("batch", "superbatch", sb, "batch", i, "loss", loss)
	}
	report.finish(lossSum, start)
	return report, false, nil
}

func (r *Report) finish(lossSum float64, start time.Time) {
	if r.Positions > 0 {
		r.Loss = float32(lossSum / float64(r.Positions))
	}
	r.Elapsed = time.Since(start)
}

// checkpoint saves the current state labelled with superbatch sb.
func (t *Trainer) checkpoint(sb int) (string, error) {
	snap := checkpoint.FromParams(t.sched.NetID, sb, t.opt.Steps(), t.net.Params())
	path, err := checkpoint.Save(t.settings.OutputDirectory, snap)
	if err != nil {
		return "", fmt.Errorf("train: %w", err)
	}
	t.logger.Info("checkpoint saved", "superbatch", sb, "path", path)
	return path, nil
}

// Resume restores parameters and optimizer state from a snapshot and continues
// from the superbatch after it.
func (t *Trainer) Resume(s *checkpoint.Snapshot) error {
	if s.NetID != t.sched.NetID {
		t.logger.Warn("resuming from a different net id", "checkpoint", s.NetID, "schedule", t.sched.NetID)
	}
	if t.sched.EndSuperbatch < s.Superbatch+1 {
		return fmt.Errorf("train: resume: checkpoint superbatch %d is past the end %d", s.Superbatch, t.sched.EndSuperbatch)
	}
	if err := s.Restore(t.net.Params()); err != nil {
		return fmt.Errorf("train: resume: %w", err)
	}
	t.opt.Restore(s.Step)
	t.next = s.Superbatch + 1
	return nil
}

// Eval returns the network evaluation of a FEN in centipawns from the side to move.
func (t *Trainer) Eval(fen string) (float32, error) {
	pos, err := chess.ParseFEN(fen)
	if err != nil {
		return 0, fmt.Errorf("train: eval: %w", err)
	}
	t.stmBuf, t.nstmBuf = t.input.Perspectives(pos, t.stmBuf[:0], t.nstmBuf[:0])
	out, err := t.net.Eval(t.stmBuf, t.nstmBuf, t.policy.Bucket(pos))
	if err != nil {
		return 0, fmt.Errorf("train: eval: %w", err)
	}
	return t.sched.EvalScale * out, nil
}
