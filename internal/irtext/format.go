package irtext

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tangzhangming/localdce/internal/ir"
)

// FormatMethod 返回方法的可读文本
func FormatMethod(m *ir.Method) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "method %s (registers %d)\n", m.Ref, m.CFG.Registers)
	sb.WriteString(m.CFG.String())
	return sb.String()
}

// MarshalMethods 把方法写回 LoadMethods 可读取的 YAML 文档
func MarshalMethods(methods []*ir.Method) ([]byte, error) {
	doc := fileDoc{Methods: make([]methodDoc, 0, len(methods))}
	for _, m := range methods {
		md := methodDoc{Name: string(m.Ref), Registers: m.CFG.Registers}
		for _, b := range orderedBlocks(m.CFG) {
			bd := blockDoc{ID: b.ID, Catch: b.Catch}
			for _, inst := range b.Insts {
				bd.Insts = append(bd.Insts, yaml.Node{
					Kind:  yaml.ScalarNode,
					Tag:   "!!str",
					Value: inst.String(),
				})
			}
			for _, e := range b.Succs {
				bd.Edges = append(bd.Edges, edgeDoc{Kind: e.Kind.String(), To: e.Target.ID})
			}
			md.Blocks = append(md.Blocks, bd)
		}
		doc.Methods = append(doc.Methods, md)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode methods: %w", err)
	}
	return out, nil
}

// orderedBlocks 入口块在前，其余按图中顺序
func orderedBlocks(cfg *ir.CFG) []*ir.Block {
	out := make([]*ir.Block, 0, len(cfg.Blocks))
	if cfg.Entry != nil {
		out = append(out, cfg.Entry)
	}
	for _, b := range cfg.Blocks {
		if b != cfg.Entry {
			out = append(out, b)
		}
	}
	return out
}
