package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/segmentio/encoding/json"
	"go.uber.org/multierr"

	"github.com/tangzhangming/localdce/internal/batch"
	"github.com/tangzhangming/localdce/internal/dce"
	"github.com/tangzhangming/localdce/internal/irtext"
)

// report -json 输出
type report struct {
	Methods int       `json:"methods"`
	Failed  int       `json:"failed"`
	Changed int       `json:"changed"`
	Stats   dce.Stats `json:"stats"`
	Errors  []string  `json:"errors,omitempty"`
}

// cmdRun 优化方法并输出统计
func (a *app) cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "", "config file (default: search for localdce.toml)")
	asJSON := fs.Bool("json", false, "print statistics as JSON")
	printMethods := fs.Bool("print", false, "print optimized methods")
	workers := fs.Int("workers", 0, "number of workers (default from config)")
	iterations := fs.Int("iterations", 0, "max passes per method (default from config)")
	output := fs.String("o", "", "write optimized methods to a YAML file")

	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: localdce run [options] <methods.yaml>...")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return a.errorf("no input files")
	}

	s, err := openSession(*configPath, fs.Args())
	if err != nil {
		return a.errorf("%v", err)
	}
	defer s.close()

	n := s.cfg.Workers()
	if *workers > 0 {
		n = *workers
	}

	iters := s.cfg.Batch.MaxIterations
	if *iterations > 0 {
		iters = *iterations
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := batch.NewRunner(batch.Options{
		Workers:              n,
		Pure:                 s.cfg.PureSet(),
		Overrides:            s.cfg.OverrideGraph(),
		MayAllocateRegisters: s.cfg.MayAllocateRegisters,
		MaxIterations:        iters,
		Logger:               s.log,
	})
	res, runErr := runner.Run(ctx, s.methods)

	if *printMethods {
		for _, m := range s.methods {
			fmt.Fprintln(a.stdout, irtext.FormatMethod(m))
		}
	}
	if *output != "" {
		data, err := irtext.MarshalMethods(s.methods)
		if err == nil {
			err = os.WriteFile(*output, data, 0644)
		}
		if err != nil {
			runErr = multierr.Append(runErr, err)
		}
	}

	if *asJSON {
		rep := report{Methods: res.Methods, Failed: res.Failed, Changed: res.Changes, Stats: res.Stats}
		for _, e := range multierr.Errors(runErr) {
			rep.Errors = append(rep.Errors, e.Error())
		}
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return a.errorf("%v", err)
		}
		fmt.Fprintln(a.stdout, string(data))
	} else {
		fmt.Fprintf(a.stdout, "methods: %d (changed %d, failed %d)\n", res.Methods, res.Changes, res.Failed)
		fmt.Fprintf(a.stdout, "dead instructions:        %d\n", res.Stats.DeadInstructions)
		fmt.Fprintf(a.stdout, "unreachable instructions: %d\n", res.Stats.UnreachableInstructions)
		fmt.Fprintf(a.stdout, "npe instructions:         %d\n", res.Stats.NpeInstructions)
		fmt.Fprintf(a.stdout, "aliased new-instances:    %d\n", res.Stats.AliasedNewInstances)
		fmt.Fprintf(a.stdout, "normalized new-instances: %d\n", res.Stats.NormalizedNewInstances)
	}

	if runErr != nil {
		for _, e := range multierr.Errors(runErr) {
			fmt.Fprintf(a.stderr, "error: %v\n", e)
		}
		return 1
	}
	return 0
}
