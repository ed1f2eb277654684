package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/mediasort/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或合并后的字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingSource 表示 CLI 与配置文件都没有给出 source。
	ErrCodeMissingSource = "config_missing_source"
	// ErrCodeMissingDest 表示 CLI 与配置文件都没有给出 dest。
	ErrCodeMissingDest = "config_missing_dest"
	// ErrCodeSourceInvalid 表示 source 路径不存在或不是目录。
	ErrCodeSourceInvalid = "source_invalid"
)

// DefaultConfigName 是未指定 --config 时在 cwd 下查找的文件名。
const DefaultConfigName = "mediasort.json"

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dry-run=false 必须能覆盖 config.dry_run=true。
type CLIArgs struct {
	Source string
	Dest   string

	Year    bool
	YearSet bool

	Month    bool
	MonthSet bool

	DryRun    bool
	DryRunSet bool

	ConfigPath    string
	ConfigPathSet bool
}

// FileConfig 对应 mediasort.json 的解析结构。
// year/month/dry_run 用 *bool 区分“写了 false”与“没写”。
type FileConfig struct {
	Source        string `json:"source"`
	Dest          string `json:"dest"`
	Year          *bool  `json:"year"`
	Month         *bool  `json:"month"`
	DryRun        *bool  `json:"dry_run"`
	SidecarJSON   bool   `json:"sidecar_json"`
	FilenameDates bool   `json:"filename_dates"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Source string
	Dest   string

	Shape  domain.KeyShape
	DryRun bool

	// SidecarJSON/FilenameDates 打开 EXIF 之外的补充日期来源。
	// 这两项属于进阶能力，仅通过 mediasort.json 配置，不暴露 CLI 参数。
	SidecarJSON   bool
	FilenameDates bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingSource:
		return fmt.Sprintf("%s：未指定 source（命令行参数或 %q）", e.Code, e.Path)
	case ErrCodeMissingDest:
		return fmt.Sprintf("%s：未指定 dest（命令行参数或 %q）", e.Code, e.Path)
	case ErrCodeSourceInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：source 目录 %q 不可用：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：source 目录 %q 不可用", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置无效（%s）：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置无效（%s）", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按固定规则发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须读取该文件（不存在即失败）
// 2) CLI 未提供 --config：尝试读取 <cwd>/mediasort.json（可选）
//
// 覆盖优先级（固定）：
// - source/dest：CLI > config
// - year/month：CLI > config；任何来源都未指定时默认按 年+月 分组，
//   一旦任一来源指定了其中之一，未指定的一侧按 false 处理
// - dry_run：CLI --dry-run/--dry-run=false > config > 默认 false
// - sidecar_json/filename_dates：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if cli.ConfigPathSet {
		// CLI 指定了 --config：该文件必须存在且可解析。
		cfgPath := absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		return merge(cwdAbs, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, DefaultConfigName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	_ = exists // 不存在也不报错
	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// source：CLI > config；两处都没有即失败。
	source := strings.TrimSpace(cli.Source)
	if source == "" {
		source = strings.TrimSpace(fc.Source)
	}
	if source == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingSource, Path: cfgPath}
	}
	absSource := absCleanFrom(cwdAbs, source)

	// dest：CLI > config；不要求预先存在（写入阶段按需创建）。
	dest := strings.TrimSpace(cli.Dest)
	if dest == "" {
		dest = strings.TrimSpace(fc.Dest)
	}
	if dest == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingDest, Path: cfgPath}
	}
	absDest := absCleanFrom(cwdAbs, dest)

	// year/month：任何来源都未出现时默认 年+月；
	// 一旦任一来源指定了其中之一，未指定的一侧按 false 处理。
	byYear, byMonth := true, true
	if cli.YearSet || cli.MonthSet || fc.Year != nil || fc.Month != nil {
		byYear = resolveBool(cli.Year, cli.YearSet, fc.Year)
		byMonth = resolveBool(cli.Month, cli.MonthSet, fc.Month)
	}
	shape, ok := domain.ShapeOf(byYear, byMonth)
	if !ok {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("year 与 month 不能同时为 false")}
	}

	// dry_run：CLI > config > 默认 false（默认真实写入）。
	dryRun := false
	if cli.DryRunSet {
		dryRun = cli.DryRun
	} else if fc.DryRun != nil {
		dryRun = *fc.DryRun
	}

	// source 必须已存在且是目录；dest 原样接受。
	fi, err := os.Stat(absSource)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeSourceInvalid, Path: absSource, Err: err}
	}
	if !fi.IsDir() {
		return EffectiveConfig{}, &Error{Code: ErrCodeSourceInvalid, Path: absSource, Err: fmt.Errorf("不是目录")}
	}

	return EffectiveConfig{
		Source:        absSource,
		Dest:          absDest,
		Shape:         shape,
		DryRun:        dryRun,
		SidecarJSON:   fc.SidecarJSON,
		FilenameDates: fc.FilenameDates,
	}, nil
}

// resolveBool 按 CLI > config > 默认 false 的顺序取布尔值。
func resolveBool(cliVal, cliSet bool, fileVal *bool) bool {
	if cliSet {
		return cliVal
	}
	if fileVal != nil {
		return *fileVal
	}
	return false
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
