// Package irtext 读写控制流图的文本形式
//
// 单条指令的语法与 ir.Instruction.String 的输出一致：
//
//	r1 = add r0 r0
//	r0 = const 5
//	r2 = new-instance LFoo;
//	invoke-virtual LFoo;.size:()I r2
//	iput r1 r2 LFoo;.count:I
//
// 方法集合以 YAML 文档描述，见 LoadMethods。
package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tangzhangming/localdce/internal/ir"
)

// ParseError 文本解析错误
type ParseError struct {
	Method string // 所在方法，可为空
	Line   int    // 源文件行号，0 表示未知
	Text   string // 出错的指令文本
	Msg    string
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	if e.Method != "" {
		fmt.Fprintf(&sb, "%s: ", e.Method)
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, "第 %d 行: ", e.Line)
	}
	sb.WriteString(e.Msg)
	if e.Text != "" {
		fmt.Fprintf(&sb, ": %q", e.Text)
	}
	return sb.String()
}

// ParseInstruction 解析一条指令
//
// 操作数按字面形式分类：rN 是寄存器，整数是常量，
// 含 ":(" 的是方法引用，含 ";." 的是字段引用，其余是类型。
func ParseInstruction(line string) (*ir.Instruction, error) {
	text := strings.TrimSpace(line)
	fail := func(format string, args ...interface{}) error {
		return &ParseError{Text: text, Msg: fmt.Sprintf(format, args...)}
	}

	rest := text
	dest := ir.NoReg
	if i := strings.IndexByte(rest, '='); i >= 0 {
		if r, ok := parseReg(strings.TrimSpace(rest[:i])); ok {
			dest = r
			rest = rest[i+1:]
		}
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, fail("缺少操作码")
	}
	op, ok := ir.LookupOpcode(fields[0])
	if !ok {
		return nil, fail("未知操作码 %s", fields[0])
	}
	if op.HasDest() != (dest != ir.NoReg) {
		if dest == ir.NoReg {
			return nil, fail("%s 需要目标寄存器", op)
		}
		return nil, fail("%s 没有目标寄存器", op)
	}

	inst := &ir.Instruction{Op: op, Dest: dest}
	hasLiteral := false
	for _, tok := range fields[1:] {
		if r, ok := parseReg(tok); ok {
			inst.Srcs = append(inst.Srcs, r)
			continue
		}
		if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
			if hasLiteral {
				return nil, fail("重复的常量 %s", tok)
			}
			inst.Literal = v
			hasLiteral = true
			continue
		}
		switch {
		case strings.Contains(tok, ":("):
			if inst.Method != "" {
				return nil, fail("重复的方法引用 %s", tok)
			}
			inst.Method = ir.MethodRef(tok)
		case strings.Contains(tok, ";."):
			if inst.Field != "" {
				return nil, fail("重复的字段引用 %s", tok)
			}
			inst.Field = tok
		default:
			if inst.Type != "" {
				return nil, fail("重复的类型 %s", tok)
			}
			inst.Type = tok
		}
	}
	if op == ir.OpConst && !hasLiteral {
		return nil, fail("const 缺少常量值")
	}
	if op.IsInvoke() && inst.Method == "" {
		return nil, fail("%s 缺少方法引用", op)
	}
	if op == ir.OpNewInstance && inst.Type == "" {
		return nil, fail("new-instance 缺少类型")
	}
	return inst, nil
}

// parseReg 解析 rN 形式的寄存器
func parseReg(tok string) (int, bool) {
	if len(tok) < 2 || tok[0] != 'r' {
		return 0, false
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
