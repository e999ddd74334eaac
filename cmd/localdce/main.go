package main

import (
	"fmt"
	"io"
	"os"
)

const (
	Version = "0.1.0"
)

func main() {
	os.Exit(newApp(os.Stdout, os.Stderr).run(os.Args[1:]))
}

// app 命令行上下文
type app struct {
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

// run 分派子命令，返回退出码
func (a *app) run(args []string) int {
	if len(args) < 1 {
		a.printUsage()
		return 0
	}

	command := args[0]
	switch command {
	case "run":
		return a.cmdRun(args[1:])
	case "check":
		return a.cmdCheck(args[1:])
	case "init":
		return a.cmdInit(args[1:])
	case "version", "-v", "--version":
		fmt.Fprintf(a.stdout, "localdce %s\n", Version)
		return 0
	case "help", "-h", "--help":
		a.printUsage()
		return 0
	default:
		// 直接给出文件时等同于 run
		if !isFlag(command) {
			return a.cmdRun(args)
		}
		fmt.Fprintf(a.stderr, "unknown command: %s\n\n", command)
		a.printUsage()
		return 1
	}
}

func isFlag(s string) bool {
	return len(s) > 0 && s[0] == '-'
}

func (a *app) printUsage() {
	w := a.stdout
	fmt.Fprintf(w, "localdce %s - local dead code elimination\n\n", Version)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  localdce <command> [options] <methods.yaml>...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run       optimize methods and report statistics")
	fmt.Fprintln(w, "  check     list dead instructions without changing anything")
	fmt.Fprintln(w, "  init      write a default localdce.toml")
	fmt.Fprintln(w, "  version   print version")
	fmt.Fprintln(w, "  help      print this help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  localdce run -print methods.yaml")
	fmt.Fprintln(w, "  localdce run -json -workers 8 a.yaml b.yaml")
	fmt.Fprintln(w, "  localdce check -config localdce.toml methods.yaml")
}

func (a *app) errorf(format string, args ...interface{}) int {
	fmt.Fprintf(a.stderr, "error: "+format+"\n", args...)
	return 1
}
