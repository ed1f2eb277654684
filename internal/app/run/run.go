package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/mediasort/internal/app/planner"
	"github.com/John-Robertt/mediasort/internal/capture"
	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
	"github.com/John-Robertt/mediasort/internal/index"
	"github.com/John-Robertt/mediasort/internal/infra/filelock"
	"github.com/John-Robertt/mediasort/internal/infra/fsx"
	"github.com/John-Robertt/mediasort/internal/scan"
)

// Execute 执行一次 run（scan → plan → save），并返回对外稳定的 RunReport。
//
// 整个流程单线程：索引在 scan 阶段写满之后才被 plan 阶段读取，
// 发现顺序即处理顺序，同一输入两次运行产出相同的计划。
func Execute(eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Source:    eff.Source,
		Dest:      eff.Dest,
		GroupBy:   eff.Shape.String(),
		DryRun:    eff.DryRun,
		StartedAt: started,
		Status:    domain.StatusOK,
		Phases:    make([]domain.PhaseTiming, 0, 3),
		Buckets:   []domain.BucketResult{},
	}

	// scan：遍历 + 提取拍摄时间 + 入桶。
	scanStarted := time.Now()
	w, err := scan.NewWalker(eff.Source)
	if err != nil {
		return abort(&rr, domain.ErrCodePatternInvalid, err.Error())
	}

	// 先探一眼：一个匹配文件都没有即整次失败，dest 不被触碰。
	if !w.Next() {
		rr.Summary.SkippedEntries = w.Skipped()
		rr.Phases = append(rr.Phases, phase("scan", time.Since(scanStarted)))
		return abort(&rr, domain.ErrCodeNoMedia,
			fmt.Sprintf("源目录中没有任何匹配的媒体文件：%s", eff.Source))
	}

	ext := capture.Extractor{
		SidecarJSON:   eff.SidecarJSON,
		FilenameDates: eff.FilenameDates,
	}
	ix := index.New(eff.Shape)

	var withTime, noTime, unreadable int
	for ok := true; ok; ok = w.Next() {
		f := w.File()
		res := ext.Extract(f.AbsPath)
		if res.Unreadable {
			unreadable++
		}
		if res.Found {
			withTime++
			ix.Insert(res.Year, res.Month, f)
		} else {
			noTime++
			ix.Insert(0, 0, f)
		}
	}
	scanDur := time.Since(scanStarted)

	rr.Summary.Found = ix.Size()
	rr.Summary.WithTime = withTime
	rr.Summary.NoTime = noTime
	rr.Summary.Unreadable = unreadable
	rr.Summary.SkippedEntries = w.Skipped()
	rr.Phases = append(rr.Phases, phase("scan", scanDur))

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":      ix.Size(),
			"with_time":  withTime,
			"no_time":    noTime,
			"unreadable": unreadable,
			"skipped":    w.Skipped(),
		}, scanDur)
	}

	// plan：只读地决定目录与目标名；dest 现状只在这里被观察一次。
	planStarted := time.Now()
	plans, err := planner.Plan(ix, eff.Dest)
	planDur := time.Since(planStarted)
	rr.Phases = append(rr.Phases, phase("plan", planDur))
	if err != nil {
		code := domain.ErrCodeIOFailed
		if fsx.IsPathTypeConflict(err) {
			code = domain.ErrCodeTargetConflict
		}
		return abort(&rr, code, err.Error())
	}

	var copies, renames int
	rr.Buckets = make([]domain.BucketResult, 0, len(plans))
	for _, p := range plans {
		b := domain.BucketResult{
			Key:   p.Key.Label(eff.Shape),
			Dir:   p.DirRel,
			Files: make([]domain.FileResult, 0, len(p.Copies)),
		}
		for _, cp := range p.Copies {
			copies++
			if cp.Renamed {
				renames++
			}
			b.Files = append(b.Files, domain.FileResult{
				Src:     relFrom(eff.Source, cp.SrcAbs),
				Dst:     relFrom(eff.Dest, cp.DstAbs),
				Status:  domain.FileStatusPlanned,
				Renamed: cp.Renamed,
			})
		}
		rr.Buckets = append(rr.Buckets, b)
	}

	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"buckets": len(plans),
			"copies":  copies,
			"renames": renames,
		}, planDur)
	}

	// dry-run：到此为止。计划原样进入报告（文件状态 planned），不加锁、不写入。
	if eff.DryRun {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	// save：同一 dest 同时只允许一个真实写入的 run。
	saveStarted := time.Now()
	lock, err := filelock.Acquire(eff.Dest)
	if err != nil {
		rr.Phases = append(rr.Phases, phase("save", time.Since(saveStarted)))
		return abort(&rr, domain.ErrCodeLocked, err.Error())
	}
	defer lock.Release()

	copied := 0
	for i := range plans {
		p := plans[i]
		bucketStarted := time.Now()

		if err := fsx.EnsureDir(p.DirAbs); err != nil {
			code := domain.ErrCodeIOFailed
			if fsx.IsPathTypeConflict(err) {
				code = domain.ErrCodeTargetConflict
			}
			rr.Phases = append(rr.Phases, phase("save", time.Since(saveStarted)))
			return abort(&rr, code, err.Error())
		}

		for j := range p.Copies {
			cp := p.Copies[j]
			if err := fsx.CopyFileNoOverwrite(cp.SrcAbs, cp.DstAbs); err != nil {
				// 首个失败即中止：已拷贝的保留，不回滚；剩余文件停留在 planned。
				rr.Buckets[i].Files[j].Status = domain.FileStatusFailed
				code := domain.ErrCodeCopyFailed
				if fsx.IsPathTypeConflict(err) || errors.Is(err, os.ErrExist) {
					code = domain.ErrCodeTargetConflict
				}
				if obs != nil {
					obs.OnItemDone(i+1, len(plans), rr.Buckets[i].Key, rr.Buckets[i], time.Since(bucketStarted))
				}
				rr.Phases = append(rr.Phases, phase("save", time.Since(saveStarted)))
				return abort(&rr, code, fmt.Sprintf("复制 %s 失败：%v", rr.Buckets[i].Files[j].Src, err))
			}
			rr.Buckets[i].Files[j].Status = domain.FileStatusCopied
			copied++
		}

		if obs != nil {
			obs.OnItemDone(i+1, len(plans), rr.Buckets[i].Key, rr.Buckets[i], time.Since(bucketStarted))
		}
	}
	saveDur := time.Since(saveStarted)
	rr.Phases = append(rr.Phases, phase("save", saveDur))

	if obs != nil {
		obs.OnPhaseDone("save", map[string]any{
			"buckets": len(plans),
			"copied":  copied,
		}, saveDur)
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// abort 填入终止错误并收尾（部分产物保留，由报告如实呈现）。
func abort(rr *domain.RunReport, code, msg string) domain.RunReport {
	rr.Status = domain.StatusFailed
	rr.ErrorCode = code
	rr.ErrorMsg = msg
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return *rr
}

func phase(name string, d time.Duration) domain.PhaseTiming {
	return domain.PhaseTiming{Name: name, Millis: d.Milliseconds()}
}

// relFrom 尽量输出相对路径；失败则输出原始 abs（至少可追溯）。
func relFrom(base, abs string) string {
	if rel, err := filepath.Rel(base, abs); err == nil {
		return rel
	}
	return abs
}
