package dce

import "fmt"

// Stats 局部死代码消除统计
//
// 多个方法各自累计后通过 Merge 合并，合并满足交换律和结合律。
type Stats struct {
	NpeInstructions         int `json:"npe_instruction_count"`         // 仅为保留异常语义而保留或插入的指令
	DeadInstructions        int `json:"dead_instruction_count"`        // 删除的死指令
	UnreachableInstructions int `json:"unreachable_instruction_count"` // 随不可达块删除的指令
	AliasedNewInstances     int `json:"aliased_new_instances"`         // 构造调用接收者是分配结果别名的次数
	NormalizedNewInstances  int `json:"normalized_new_instances"`      // 完成规范化的分配
}

// Merge 累加另一份统计
func (s *Stats) Merge(o Stats) {
	s.NpeInstructions += o.NpeInstructions
	s.DeadInstructions += o.DeadInstructions
	s.UnreachableInstructions += o.UnreachableInstructions
	s.AliasedNewInstances += o.AliasedNewInstances
	s.NormalizedNewInstances += o.NormalizedNewInstances
}

// Add 返回两份统计之和
func (s Stats) Add(o Stats) Stats {
	s.Merge(o)
	return s
}

// IsZero 是否没有任何计数
func (s Stats) IsZero() bool {
	return s == Stats{}
}

func (s Stats) String() string {
	return fmt.Sprintf("dead=%d unreachable=%d npe=%d aliased=%d normalized=%d",
		s.DeadInstructions, s.UnreachableInstructions, s.NpeInstructions,
		s.AliasedNewInstances, s.NormalizedNewInstances)
}
