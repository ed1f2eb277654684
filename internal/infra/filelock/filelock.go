package filelock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock 是以目标目录为粒度的跨进程运行锁。
//
// 锁文件放在系统临时目录而不是目标目录里，文件名由目标绝对路径的
// 哈希导出：同一个目标在任何进程里都映射到同一把锁。
type Lock struct {
	fl *flock.Flock
}

// Acquire 非阻塞地获取 dest 的运行锁；锁被其他进程持有时返回错误。
func Acquire(dest string) (*Lock, error) {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(abs))
	name := fmt.Sprintf("mediasort-%s.lock", hex.EncodeToString(sum[:6]))

	fl := flock.New(filepath.Join(os.TempDir(), name))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取运行锁失败：%w", err)
	}
	if !ok {
		return nil, fmt.Errorf("目标目录已被另一个 mediasort 进程占用：%s", abs)
	}
	return &Lock{fl: fl}, nil
}

// Release 释放锁；对 nil 接收者安全。
func (l *Lock) Release() {
	if l == nil {
		return
	}
	_ = l.fl.Unlock()
}
