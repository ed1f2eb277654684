package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const (
	FileStatusPlanned = "planned"
	FileStatusCopied  = "copied"
	FileStatusFailed  = "failed"
)

const (
	ErrCodePatternInvalid = "pattern_invalid"
	ErrCodeNoMedia        = "no_media_found"
	ErrCodeTargetConflict = "target_conflict"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeCopyFailed     = "copy_failed"
	ErrCodeLocked         = "destination_locked"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeMissingSource  = "config_missing_source"
	ErrCodeMissingDest    = "config_missing_dest"
	ErrCodeSourceInvalid  = "source_invalid"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
//
// 约束：
// - 不落盘（本工具不持久化任何运行状态）
// - 字段一旦发布即保持稳定，新增字段只追加
type RunReport struct {
	RunID string `json:"run_id"`

	Source  string `json:"source"`
	Dest    string `json:"dest"`
	GroupBy string `json:"group_by"` // "year+month" | "year" | "month"
	DryRun  bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string `json:"status"` // "ok" | "failed"
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Summary ReportSummary  `json:"summary"`
	Phases  []PhaseTiming  `json:"phases"`
	Buckets []BucketResult `json:"buckets"`
}

type ReportSummary struct {
	// Found 是进入分组索引的媒体总数（等于发现且未被条目级错误丢弃的文件数）。
	Found      int `json:"found"`
	WithTime   int `json:"with_time"`
	NoTime     int `json:"no_time"`
	Unreadable int `json:"unreadable"` // 无法打开、按“无时间戳”降级处理的文件数

	// SkippedEntries 是遍历期被静默丢弃的目录项（权限、坏软链等）。
	SkippedEntries int `json:"skipped_entries"`

	Buckets int `json:"buckets"`
	Copied  int `json:"copied"`
	Renamed int `json:"renamed"`
	Failed  int `json:"failed"`
}

// PhaseTiming 记录单个阶段的耗时（毫秒，对外稳定）。
type PhaseTiming struct {
	Name   string `json:"name"` // "scan" | "plan" | "save"
	Millis int64  `json:"millis"`
}

// BucketResult 是一个分组键的结果条目；Files 保持桶内插入顺序。
type BucketResult struct {
	Key   string       `json:"key"` // 展示键，如 "2024/January"、"0/Unknown"
	Dir   string       `json:"dir"` // 相对 dest 的目录
	Files []FileResult `json:"files"`
}

type FileResult struct {
	Src     string `json:"src"` // 相对 source 的路径
	Dst     string `json:"dst"` // 相对 dest 的路径
	Status  string `json:"status"`
	Renamed bool   `json:"renamed,omitempty"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 的桶/文件统计由 Buckets 计算得出（Found/WithTime 等计数由 run 层直接填写）
//
// Buckets 不排序：run 层按键升序构造，迭代顺序本身就是确定的。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	r.Summary.Buckets = len(r.Buckets)
	r.Summary.Copied = 0
	r.Summary.Renamed = 0
	r.Summary.Failed = 0
	for _, b := range r.Buckets {
		for _, f := range b.Files {
			switch f.Status {
			case FileStatusCopied:
				r.Summary.Copied++
			case FileStatusFailed:
				r.Summary.Failed++
			}
			if f.Renamed {
				r.Summary.Renamed++
			}
		}
	}
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
