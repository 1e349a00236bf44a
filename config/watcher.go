package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"stratmesh/logger"
)

// ReloadFunc 配置热更新回调，收到的是已通过验证的新配置
type ReloadFunc func(*Config)

// Watcher 配置文件监控器：文件变化时重新加载并触发回调
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	onReload   ReloadFunc

	mu          sync.Mutex
	isWatching  bool
	lastModTime time.Time
}

// NewWatcher 创建配置监控器
func NewWatcher(configPath string, onReload ReloadFunc) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %v", err)
	}

	configPath = filepath.Clean(configPath)

	var lastModTime time.Time
	if info, err := os.Stat(configPath); err == nil {
		lastModTime = info.ModTime()
	}

	return &Watcher{
		configPath:  configPath,
		watcher:     fsWatcher,
		onReload:    onReload,
		lastModTime: lastModTime,
	}, nil
}

// Start 开始监控配置文件
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isWatching {
		return fmt.Errorf("配置监控器已经在运行")
	}

	// 监控所在目录，编辑器原子替换文件时仍能收到事件
	configDir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(configDir); err != nil {
		return fmt.Errorf("添加监控目录失败: %v", err)
	}

	w.isWatching = true
	go w.watchLoop(ctx)

	return nil
}

// Stop 停止监控
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isWatching {
		return nil
	}

	w.isWatching = false
	return w.watcher.Close()
}

// watchLoop 监控循环
func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// 延迟处理，避免文件正在写入时读取
			time.Sleep(100 * time.Millisecond)
			w.handleChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("❌ 配置监控出错: %v", err)
		}
	}
}

// handleChange 处理配置文件变化
func (w *Watcher) handleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.configPath)
	if err != nil {
		logger.Error("❌ 获取配置文件信息失败: %v", err)
		return
	}

	// 按修改时间去重，同一次保存可能触发多个事件
	modTime := info.ModTime()
	if !modTime.After(w.lastModTime) {
		return
	}
	w.lastModTime = modTime

	newConfig, err := LoadConfig(w.configPath)
	if err != nil {
		// 非法配置保持旧配置继续运行
		logger.Error("❌ 配置热更新失败，继续使用旧配置: %v", err)
		return
	}

	logger.Info("🔄 配置已热更新: %s", w.configPath)
	if w.onReload != nil {
		w.onReload(newConfig)
	}
}
