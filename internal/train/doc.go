// Package train runs NNUE training schedules.
//
// A Trainer pulls packed batches from a data.Prefetcher, steps the network and
// its AdamW optimizer, logs one line per superbatch through log/slog and writes
// checkpoints to LocalSettings.OutputDirectory.
//
//	net, _ := nn.New(cpu.New(), nn.Simple(768, 32, 512, 16384))
//	tr, _ := train.New(net, train.DefaultSchedule("simple"), train.LocalSettings{})
//	err := tr.Run(ctx, data.NewSliceSource(samples, true, 0))
package train
