package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/John-Robertt/mediasort/internal/app/run"
	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：长时间无桶完成时也会定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	dryRun bool
	total  int
	done   int
	copied int

	okMark   *color.Color
	failMark *color.Color

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		okMark:             color.New(color.FgGreen),
		failMark:           color.New(color.FgRed),
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.dryRun = eff.DryRun

	mode := "copy"
	modeHint := ""
	if eff.DryRun {
		mode = "dry-run"
		modeHint = " (只规划，不写入)"
	}

	fmt.Fprintf(p.w, "[%s] mediasort run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  source: %s\n", eff.Source)
	fmt.Fprintf(p.w, "  dest: %s\n", eff.Dest)
	fmt.Fprintf(p.w, "  group_by: %s\n", eff.Shape)
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  sidecar_json: %s\n", onOff(eff.SidecarJSON))
	fmt.Fprintf(p.w, "  filename_dates: %s\n", onOff(eff.FilenameDates))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d with_time=%d no_time=%d unreadable=%d skipped=%d (%s)\n",
			intField(fields, "files"),
			intField(fields, "with_time"),
			intField(fields, "no_time"),
			intField(fields, "unreadable"),
			intField(fields, "skipped"),
			formatShortDuration(dur),
		)
	case "plan":
		p.total = intField(fields, "buckets")
		fmt.Fprintf(p.w, "规划: buckets=%d copies=%d renames=%d (%s)\n",
			p.total, intField(fields, "copies"), intField(fields, "renames"), formatShortDuration(dur),
		)
		if !p.dryRun && p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case "save":
		fmt.Fprintf(p.w, "写入: buckets=%d copied=%d (%s)\n",
			intField(fields, "buckets"), intField(fields, "copied"), formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, key string, res domain.BucketResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total

	copied, renamed, failed := 0, 0, 0
	for _, f := range res.Files {
		switch f.Status {
		case domain.FileStatusCopied:
			copied++
		case domain.FileStatusFailed:
			failed++
		}
		if f.Renamed {
			renamed++
		}
	}
	p.copied += copied

	if failed > 0 {
		fmt.Fprintf(p.w, "[%d/%d] %s %s copied=%d failed=%d (%s)\n",
			idx, total, key, p.failMark.Sprint("FAIL"), copied, failed, formatShortDuration(dur),
		)
	} else {
		fmt.Fprintf(p.w, "[%d/%d] %s %s files=%d renamed=%d (%s)\n",
			idx, total, key, p.okMark.Sprint("OK"), copied, renamed, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一个桶完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, copied int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "进度: done=%d/%d copied=%d elapsed=%s\n",
		done, total, copied, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				// 已完成：安全退出（OnItemDone 会 close stopCh，但这里也做兜底）。
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}

				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					elapsed := time.Since(p.startedAt)
					fmt.Fprintf(p.w, "进度: done=%d/%d copied=%d elapsed=%s\n",
						p.done, p.total, p.copied, formatElapsed(elapsed),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-p.stopCh:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
