package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// 固定的发现参数：进程启动时确定，之后不再修改。
//
// 模式匹配不区分大小写（条目名先转小写再匹配）。
// 注意：".mov" 不含通配符，只匹配字面文件名 ".mov"。
const MaxDepth = 4

var defaultPatterns = []string{"*.png", "*.jpg", "*.jpeg", "*.heic", ".mov"}

// Walker 对 root 做一次性的深度受限遍历。
//
// - 惰性：每次 Next 最多读取一个新目录
// - 不可重启：耗尽后 Next 永远返回 false
// - 跟随符号链接；目录环通过已解析路径集合打断
// - 单个条目的错误（损坏的链接、不可读的子目录）不会中断遍历，
//   只累加到 Skipped 计数
type Walker struct {
	patterns []string
	stack    []frame
	visited  map[string]bool
	cur      domain.MediaFile
	skipped  int
}

type frame struct {
	abs    string
	rel    string
	depth  int
	ents   []fs.DirEntry
	next   int
	loaded bool
}

// NewWalker 构造对 root 的遍历；root 应为已验证存在的目录。
func NewWalker(root string) (*Walker, error) {
	return newWalker(root, defaultPatterns)
}

func newWalker(root string, patterns []string) (*Walker, error) {
	if len(patterns) == 0 {
		return nil, errors.New("文件匹配模式集不能为空")
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return nil, errors.New("文件匹配模式不能为空")
		}
		lp := strings.ToLower(p)
		// 模式合法性在构造期验证：Match 的语法错误只取决于模式本身。
		if _, err := filepath.Match(lp, "x"); err != nil {
			return nil, fmt.Errorf("无效的文件匹配模式 %q：%w", p, err)
		}
		lowered = append(lowered, lp)
	}

	root = filepath.Clean(root)
	visited := make(map[string]bool, 8)
	if real, err := filepath.EvalSymlinks(root); err == nil {
		visited[real] = true
	}

	return &Walker{
		patterns: lowered,
		stack:    []frame{{abs: root, rel: "", depth: 0}},
		visited:  visited,
	}, nil
}

// Next 推进到下一个匹配的文件；返回 false 表示遍历结束。
func (w *Walker) Next() bool {
	for len(w.stack) > 0 {
		f := &w.stack[len(w.stack)-1]
		if !f.loaded {
			f.loaded = true
			ents, err := os.ReadDir(f.abs)
			if err != nil {
				w.skipped++
				w.pop()
				continue
			}
			f.ents = ents
		}
		if f.next >= len(f.ents) {
			w.pop()
			continue
		}

		ent := f.ents[f.next]
		f.next++

		name := ent.Name()
		abs := filepath.Join(f.abs, name)
		rel := filepath.Join(f.rel, name)

		// Stat 而非 Lstat：符号链接按其指向的类型处理。
		info, err := os.Stat(abs)
		if err != nil {
			w.skipped++
			continue
		}

		if info.IsDir() {
			depth := f.depth + 1
			// 该目录下的条目深度为 depth+1；超过上限就不必进入。
			if depth >= MaxDepth {
				continue
			}
			real, err := filepath.EvalSymlinks(abs)
			if err != nil {
				w.skipped++
				continue
			}
			if w.visited[real] {
				continue
			}
			w.visited[real] = true
			w.stack = append(w.stack, frame{abs: abs, rel: rel, depth: depth})
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}
		if !w.match(name) {
			continue
		}

		w.cur = domain.MediaFile{AbsPath: abs, RelPath: rel, Name: name}
		return true
	}
	return false
}

// File 返回当前文件；仅在最近一次 Next 返回 true 后有效。
func (w *Walker) File() domain.MediaFile { return w.cur }

// Skipped 返回因条目级错误被丢弃的条目数。
func (w *Walker) Skipped() int { return w.skipped }

func (w *Walker) pop() { w.stack = w.stack[:len(w.stack)-1] }

func (w *Walker) match(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range w.patterns {
		// 模式已在构造期验证，这里不会出错。
		if ok, _ := filepath.Match(p, lower); ok {
			return true
		}
	}
	return false
}
