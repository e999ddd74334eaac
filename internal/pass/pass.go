// Package pass 管理作用于方法体的变换 Pass
package pass

import (
	"fmt"

	"github.com/tangzhangming/localdce/internal/ir"
)

// ============================================================================
// Pass 接口
// ============================================================================

// Pass 方法级变换
type Pass interface {
	Name() string
	Run(m *ir.Method) (bool, error) // 返回是否有修改
}

// ============================================================================
// Pass 管理器
// ============================================================================

// Manager Pass 管理器
type Manager struct {
	passes []Pass
	stats  Stats
}

// Stats Pass 统计信息
type Stats struct {
	PassesRun      int
	TotalChanges   int
	PerPassChanges map[string]int
}

// NewManager 创建 Pass 管理器
func NewManager(passes ...Pass) *Manager {
	pm := &Manager{
		passes: make([]Pass, 0, len(passes)),
		stats: Stats{
			PerPassChanges: make(map[string]int),
		},
	}
	for _, p := range passes {
		pm.AddPass(p)
	}
	return pm
}

// AddPass 添加 Pass
func (pm *Manager) AddPass(p Pass) {
	pm.passes = append(pm.passes, p)
}

// Run 依次运行所有 Pass，遇到错误立即返回
func (pm *Manager) Run(m *ir.Method) (bool, error) {
	changed := false
	for _, p := range pm.passes {
		pm.stats.PassesRun++
		c, err := p.Run(m)
		if err != nil {
			return changed, fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		if c {
			changed = true
			pm.stats.TotalChanges++
			pm.stats.PerPassChanges[p.Name()]++
		}
	}
	return changed, nil
}

// RunUntilFixed 运行 Pass 直到不再有改变，返回实际迭代次数
func (pm *Manager) RunUntilFixed(m *ir.Method, maxIters int) (int, error) {
	for i := 0; i < maxIters; i++ {
		changed, err := pm.Run(m)
		if err != nil {
			return i + 1, err
		}
		if !changed {
			return i + 1, nil
		}
	}
	return maxIters, nil
}

// Stats 获取统计信息
func (pm *Manager) Stats() Stats {
	return pm.stats
}
