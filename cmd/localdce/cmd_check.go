package main

import (
	"flag"
	"fmt"

	"github.com/tangzhangming/localdce/internal/dce"
)

// cmdCheck 列出死指令，不修改输入
func (a *app) cmdCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "", "config file (default: search for localdce.toml)")

	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: localdce check [options] <methods.yaml>...")
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

	d := dce.New(s.cfg.PureSet(), s.cfg.OverrideGraph())
	code, total := 0, 0
	for _, m := range s.methods {
		dead, err := d.GetDeadInstructions(m.CFG, m.CFG.PostOrder(), nil, nil)
		if err != nil {
			fmt.Fprintf(a.stderr, "error: %s: %v\n", m.Ref, err)
			code = 1
			continue
		}
		for _, di := range dead {
			fmt.Fprintf(a.stdout, "%s B%d:%d %s\n", m.Ref, di.Block.ID, di.Index, di.Inst)
		}
		total += len(dead)
	}
	fmt.Fprintf(a.stdout, "%d dead instructions in %d methods\n", total, len(s.methods))
	return code
}
