package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/mediasort/internal/app/run"
	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Source:        ra.Source,
		Dest:          ra.Dest,
		Year:          ra.Year,
		YearSet:       ra.YearSet,
		Month:         ra.Month,
		MonthSet:      ra.MonthSet,
		DryRun:        ra.DryRun,
		DryRunSet:     ra.DryRunSet,
		ConfigPath:    ra.ConfigPath,
		ConfigPathSet: ra.ConfigPathSet,
	})
	if err != nil {
		emitReport(reportForConfigError(ra, err))
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(eff, obs)

	if interactive && len(rr.Buckets) > 0 {
		fmt.Fprintln(progressW, renderBucketTable(rr))
	}

	emitReport(rr)
	if rr.Status == domain.StatusOK {
		return 0
	}
	return 1
}

type runArgs struct {
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

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}
	pos := make([]string, 0, 2)

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--year":
			ra.Year, ra.YearSet = true, true
		case strings.HasPrefix(a, "--year="):
			v, err := parseBoolFlag("--year", strings.TrimPrefix(a, "--year="))
			if err != nil {
				return runArgs{}, err
			}
			ra.Year, ra.YearSet = v, true
		case a == "--month":
			ra.Month, ra.MonthSet = true, true
		case strings.HasPrefix(a, "--month="):
			v, err := parseBoolFlag("--month", strings.TrimPrefix(a, "--month="))
			if err != nil {
				return runArgs{}, err
			}
			ra.Month, ra.MonthSet = v, true
		case a == "--dry-run":
			ra.DryRun, ra.DryRunSet = true, true
		case strings.HasPrefix(a, "--dry-run="):
			v, err := parseBoolFlag("--dry-run", strings.TrimPrefix(a, "--dry-run="))
			if err != nil {
				return runArgs{}, err
			}
			ra.DryRun, ra.DryRunSet = v, true
		case a == "--config":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--config 需要一个值")
			}
			i++
			ra.ConfigPath, ra.ConfigPathSet = args[i], true
		case strings.HasPrefix(a, "--config="):
			ra.ConfigPath, ra.ConfigPathSet = strings.TrimPrefix(a, "--config="), true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			pos = append(pos, a)
		}
	}

	if len(pos) > 2 {
		return runArgs{}, fmt.Errorf("多余的位置参数：%q", pos[2:])
	}
	if len(pos) >= 1 {
		ra.Source = pos[0]
	}
	if len(pos) == 2 {
		ra.Dest = pos[1]
	}
	if ra.ConfigPathSet && strings.TrimSpace(ra.ConfigPath) == "" {
		return runArgs{}, fmt.Errorf("--config 不能为空")
	}

	return ra, nil
}

func parseBoolFlag(name, v string) (bool, error) {
	switch v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, v)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  mediasort run [source] [dest] [--year[=true|false]] [--month[=true|false]] [--dry-run[=true|false]] [--config <file>]

命令：
  run    扫描 source 并把媒体文件按拍摄时间整理到 dest（复制，不移动）

使用 "mediasort run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  mediasort run [source] [dest] [--year[=true|false]] [--month[=true|false]] [--dry-run[=true|false]] [--config <file>]

参数：
  --year      按年分组（可与 --month 组合；两者都未指定时默认 年+月）
  --month     按月分组
  --dry-run   只生成计划，不加锁、不写入；支持 --dry-run=false 覆盖配置中的 dry_run=true
  --config    指定配置文件（未指定则读取当前目录的 mediasort.json，可选）
  -h, --help  显示帮助

source/dest 也可以放在配置文件里；命令行优先于配置文件。
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：found=%d buckets=%d copied=%d renamed=%d failed=%d（扫描 %s，写入 %s）\n",
			rr.Summary.Found, rr.Summary.Buckets, rr.Summary.Copied, rr.Summary.Renamed, rr.Summary.Failed,
			phaseSeconds(rr, "scan"), phaseSeconds(rr, "save"),
		)
		if rr.Status == domain.StatusFailed {
			fmt.Fprintf(os.Stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：found=%d buckets=%d copied=%d renamed=%d failed=%d\n",
		rr.Summary.Found, rr.Summary.Buckets, rr.Summary.Copied, rr.Summary.Renamed, rr.Summary.Failed,
	)
	if rr.Status == domain.StatusFailed {
		fmt.Fprintf(os.Stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
	}
}

func phaseSeconds(rr domain.RunReport, name string) string {
	for _, p := range rr.Phases {
		if p.Name == name {
			return fmt.Sprintf("%.1fs", float64(p.Millis)/1000)
		}
	}
	return "-"
}

func reportForConfigError(ra runArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Source:     ra.Source,
		Dest:       ra.Dest,
		DryRun:     ra.DryRunSet && ra.DryRun,
		StartedAt:  now,
		FinishedAt: now,
		Status:     domain.StatusFailed,
		ErrorCode:  config.Code(err),
		ErrorMsg:   err.Error(),
		Phases:     []domain.PhaseTiming{},
		Buckets:    []domain.BucketResult{},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
