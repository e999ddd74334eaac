package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tangzhangming/localdce/internal/config"
)

// cmdInit 在指定目录写入默认配置
func (a *app) cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	force := fs.Bool("f", false, "overwrite an existing config file")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	path := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(path); err == nil && !*force {
		return a.errorf("%s already exists (use -f to overwrite)", path)
	}

	if err := config.Default().Save(path); err != nil {
		return a.errorf("%v", err)
	}
	fmt.Fprintf(a.stdout, "created %s\n", path)
	return 0
}
