// Package batch 在工作协程池上对多个方法运行局部死代码消除
//
// 每个工作协程持有自己的 dce.LocalDce，纯方法集合与覆写图只读共享，
// 统计在全部工作协程结束后合并一次。
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tangzhangming/localdce/internal/dce"
	"github.com/tangzhangming/localdce/internal/ir"
	"github.com/tangzhangming/localdce/internal/pass"
	"github.com/tangzhangming/localdce/internal/purity"
)

// MaxWorkers 工作协程数量上限
const MaxWorkers = 256

// Options 批处理选项
type Options struct {
	Workers              int // 0 表示使用 CPU 数量
	Pure                 purity.MethodSet
	Overrides            *purity.OverrideGraph
	MayAllocateRegisters bool
	MaxIterations        int // 每个方法最多运行的轮数，0 表示只运行一轮
	Logger               *zap.Logger
}

// Result 批处理结果
type Result struct {
	Methods int       // 处理的方法数
	Failed  int       // 失败的方法数
	Stats   dce.Stats // 合并后的统计
	Changes int       // 发生修改的方法数
}

// Runner 批处理运行器，计数在多次 Run 之间累计
type Runner struct {
	opts      Options
	logger    *zap.Logger
	processed *atomic.Int64
	failed    *atomic.Int64
	changed   *atomic.Int64
}

// NewRunner 创建运行器
func NewRunner(opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		opts:      opts,
		logger:    logger,
		processed: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		changed:   atomic.NewInt64(0),
	}
}

// Processed 返回已处理的方法数，可在运行期间调用
func (r *Runner) Processed() int64 {
	return r.processed.Load()
}

// worker 工作协程状态
type worker struct {
	id  int
	dce *dce.LocalDce
	pm  *pass.Manager
}

// Run 处理所有方法
//
// 单个方法失败不影响其他方法，所有错误合并返回。
// ctx 取消后尚未开始的方法不再处理。
func (r *Runner) Run(ctx context.Context, methods []*ir.Method) (Result, error) {
	numWorkers := r.opts.Workers
	if numWorkers > len(methods) {
		numWorkers = len(methods)
	}

	processed, failed, changes := r.processed.Load(), r.failed.Load(), r.changed.Load()
	jobs := make(chan int)
	errs := make([]error, len(methods))
	workers := make([]*worker, numWorkers)
	var wg sync.WaitGroup

	for i := range workers {
		w := r.newWorker(i)
		workers[i] = w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				errs[idx] = r.process(w, methods[idx])
			}
		}()
	}

feed:
	for i := range methods {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	res := Result{
		Methods: int(r.processed.Load() - processed),
		Failed:  int(r.failed.Load() - failed),
		Changes: int(r.changed.Load() - changes),
	}
	for _, w := range workers {
		res.Stats.Merge(w.dce.Stats())
	}

	err := multierr.Combine(errs...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = multierr.Append(err, ctxErr)
	}

	r.logger.Info("batch finished",
		zap.Int("workers", numWorkers),
		zap.Int("methods", res.Methods),
		zap.Int("failed", res.Failed),
		zap.Stringer("stats", res.Stats))
	return res, err
}

func (r *Runner) newWorker(id int) *worker {
	d := dce.New(r.opts.Pure, r.opts.Overrides,
		dce.WithMayAllocateRegisters(r.opts.MayAllocateRegisters),
		dce.WithLogger(r.logger.With(zap.Int("worker", id))))
	return &worker{id: id, dce: d, pm: pass.NewManager(d)}
}

func (r *Runner) process(w *worker, m *ir.Method) error {
	defer r.processed.Inc()

	before := w.pm.Stats().TotalChanges
	iters, err := w.pm.RunUntilFixed(m, r.opts.MaxIterations)
	if err != nil {
		r.failed.Inc()
		r.logger.Warn("method failed", zap.String("method", string(m.Ref)), zap.Error(err))
		return fmt.Errorf("%s: %w", m.Ref, err)
	}
	if w.pm.Stats().TotalChanges > before {
		r.changed.Inc()
	}
	if iters == r.opts.MaxIterations && iters > 1 {
		r.logger.Debug("method used all iterations",
			zap.String("method", string(m.Ref)), zap.Int("iterations", iters))
	}
	return nil
}
