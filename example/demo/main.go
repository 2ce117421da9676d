package main

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/pxLi-io/flake"
)

func main() {
	conf := flake.DefaultConfig()
	conf.StatePath = filepath.Join(os.TempDir(), "flake-demo.db")

	fs := pflag.NewFlagSet("demo", pflag.ExitOnError)
	conf.BindFlags(fs)
	workers := fs.Int("workers", 4, "concurrent generators sharing the state file")
	count := fs.Int("count", 1000, "identifiers per worker")
	_ = fs.Parse(os.Args[1:])

	logger := flake.NewSugar(os.Stdout, zapcore.InfoLevel)
	defer func() { _ = logger.Sync() }()

	opts, err := conf.Options()
	if err != nil {
		logger.Fatalw("invalid config", "error", err)
	}
	opts = append(opts, flake.WithLogger(logger))

	var (
		mu    sync.Mutex
		seen  = make(map[flake.Identifier]int, (*workers)*(*count))
		wg    sync.WaitGroup
		stats = make([]flake.Stats, *workers)
	)
	cur := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// one generator per worker, like one process per node
			gen := flake.New(conf.StatePath, opts...)
			for i := 0; i < *count; i++ {
				id, err := gen.Generate()
				if err != nil {
					logger.Errorw("generate failed", "worker", w, "error", err)
					return
				}
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
			stats[w] = gen.Stats()
		}(w)
	}
	wg.Wait()

	duplicates := 0
	for _, n := range seen {
		if n > 1 {
			duplicates += n - 1
		}
	}
	logger.Infow("done",
		"state", conf.StatePath,
		"sequence_policy", conf.SequencePolicy,
		"unique", len(seen),
		"duplicates", duplicates,
		"elapsed", time.Since(cur).String(),
		"stats", stats,
	)
}
