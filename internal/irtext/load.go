package irtext

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/tangzhangming/localdce/internal/ir"
)

// ============================================================================
// YAML 文档结构
// ============================================================================
//
//	methods:
//	  - name: LFoo;.bar:()I
//	    registers: 2
//	    blocks:
//	      - id: 0
//	        insts:
//	          - r0 = const 5
//	        edges:
//	          - {kind: goto, to: 1}
//	      - id: 1
//	        insts: [return r0]
//
// 第一个块是入口块。块在图中按文档顺序重新编号。

type fileDoc struct {
	Methods []methodDoc `yaml:"methods"`
}

type methodDoc struct {
	Name      string     `yaml:"name"`
	Registers int        `yaml:"registers"`
	Blocks    []blockDoc `yaml:"blocks"`
}

type blockDoc struct {
	ID    int         `yaml:"id"`
	Catch bool        `yaml:"catch,omitempty"`
	Insts []yaml.Node `yaml:"insts,omitempty"`
	Edges []edgeDoc   `yaml:"edges,omitempty"`
}

type edgeDoc struct {
	Kind string `yaml:"kind"`
	To   int    `yaml:"to"`
}

// ============================================================================
// 加载
// ============================================================================

// LoadFile 从文件加载方法
func LoadFile(path string) ([]*ir.Method, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	methods, err := LoadMethods(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return methods, nil
}

// LoadMethods 从 YAML 文档加载方法
//
// 所有方法的错误会合并返回，出错的方法不会出现在结果中。
func LoadMethods(r io.Reader) ([]*ir.Method, error) {
	var doc fileDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse methods: %w", err)
	}

	var (
		methods []*ir.Method
		errs    error
	)
	for i := range doc.Methods {
		m, err := buildMethod(&doc.Methods[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		methods = append(methods, m)
	}
	return methods, errs
}

func buildMethod(md *methodDoc) (*ir.Method, error) {
	name := md.Name
	fail := func(format string, args ...interface{}) error {
		return &ParseError{Method: name, Msg: fmt.Sprintf(format, args...)}
	}

	if name == "" {
		return nil, fail("缺少方法名")
	}
	if len(md.Blocks) == 0 {
		return nil, fail("方法没有基本块")
	}

	cfg := ir.NewCFG(md.Registers)
	byID := make(map[int]*ir.Block, len(md.Blocks))
	for _, bd := range md.Blocks {
		if _, dup := byID[bd.ID]; dup {
			return nil, fail("重复的块编号 %d", bd.ID)
		}
		b := cfg.NewBlock()
		b.Catch = bd.Catch
		byID[bd.ID] = b
	}

	for _, bd := range md.Blocks {
		b := byID[bd.ID]
		for _, node := range bd.Insts {
			inst, err := ParseInstruction(node.Value)
			if err != nil {
				if pe, ok := err.(*ParseError); ok {
					pe.Method = name
					pe.Line = node.Line
				}
				return nil, err
			}
			b.Append(inst)
		}
		for _, ed := range bd.Edges {
			kind, ok := ir.ParseEdgeKind(strings.ToLower(ed.Kind))
			if !ok {
				return nil, fail("块 %d: 未知的边类型 %q", bd.ID, ed.Kind)
			}
			target, ok := byID[ed.To]
			if !ok {
				return nil, fail("块 %d: 边指向不存在的块 %d", bd.ID, ed.To)
			}
			cfg.AddEdge(b, target, kind)
		}
	}

	return &ir.Method{Ref: ir.MethodRef(name), CFG: cfg}, nil
}
