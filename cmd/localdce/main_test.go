package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"

	"github.com/tangzhangming/localdce/internal/irtext"
)

const methodsYAML = `
methods:
  - name: LTest;.run:()I
    registers: 3
    blocks:
      - id: 0
        insts:
          - r0 = const 5
          - r1 = add r0 r0
          - invoke-static Ljava/lang/Math;.abs:(I)I r0
          - r2 = new-instance LFoo;
          - r1 = move-object r2
          - invoke-direct LFoo;.<init>:()V r1
          - return r1
`

const configTOML = `
[purity]
methods = ["Ljava/lang/Math;.abs:(I)I"]

[log]
level = "error"
`

func writeFixture(t *testing.T) (dir, input string) {
	t.Helper()
	dir = t.TempDir()
	input = filepath.Join(dir, "methods.yaml")
	if err := os.WriteFile(input, []byte(methodsYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "localdce.toml"), []byte(configTOML), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, input
}

// TestRunJSON 测试 run 子命令的 JSON 输出
func TestRunJSON(t *testing.T) {
	dir, input := writeFixture(t)
	out := filepath.Join(dir, "out.yaml")

	var stdout, stderr bytes.Buffer
	code := newApp(&stdout, &stderr).run([]string{"run", "-json", "-workers", "2", "-o", out, input})
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}

	var rep report
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		t.Fatalf("bad JSON %q: %v", stdout.String(), err)
	}
	if rep.Methods != 1 || rep.Changed != 1 {
		t.Errorf("report = %+v", rep)
	}
	if rep.Stats.DeadInstructions != 3 || rep.Stats.AliasedNewInstances != 1 || rep.Stats.NormalizedNewInstances != 1 {
		t.Errorf("stats = %v", rep.Stats)
	}

	methods, err := irtext.LoadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(methods[0].CFG.Entry.Insts); got != 3 {
		t.Errorf("optimized method has %d instructions:\n%s", got, irtext.FormatMethod(methods[0]))
	}
}

// TestCheck 测试 check 子命令不修改输入
func TestCheck(t *testing.T) {
	_, input := writeFixture(t)
	before, _ := os.ReadFile(input)

	var stdout, stderr bytes.Buffer
	code := newApp(&stdout, &stderr).run([]string{"check", input})
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "3 dead instructions in 1 methods") {
		t.Errorf("stdout = %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "B0:1 r1 = add r0 r0") {
		t.Errorf("stdout = %q", stdout.String())
	}

	after, _ := os.ReadFile(input)
	if !bytes.Equal(before, after) {
		t.Error("check modified the input file")
	}
}

// TestRunErrors 测试错误退出码
func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)

	if code := a.run([]string{"run"}); code != 1 {
		t.Errorf("missing input: exit code %d", code)
	}
	if code := a.run([]string{"run", filepath.Join(t.TempDir(), "missing.yaml")}); code != 1 {
		t.Errorf("missing file: exit code %d", code)
	}
	if code := a.run([]string{"-bogus"}); code != 1 {
		t.Errorf("unknown flag: exit code %d", code)
	}
	if code := a.run([]string{"version"}); code != 0 || !strings.Contains(stdout.String(), Version) {
		t.Errorf("version: exit code %d, output %q", code, stdout.String())
	}
}

// TestInit 测试生成默认配置
func TestInit(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)

	if code := a.run([]string{"init", dir}); code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "localdce.toml")); err != nil {
		t.Fatal(err)
	}
	if code := a.run([]string{"init", dir}); code != 1 {
		t.Error("init should refuse to overwrite without -f")
	}
	if code := a.run([]string{"init", "-f", dir}); code != 0 {
		t.Errorf("init -f: exit code %d", code)
	}
}
