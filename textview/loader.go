// Package textview implements fsm.StaticLoader by reading named Markdown
// assets off disk, the Go-idiomatic counterpart to the original bot's
// database-backed static loader.
package textview

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DiskLoader resolves asset codes to Markdown bodies read from a root
// directory, one file per code (code "welcome" -> "welcome.md"). Bodies are
// cached after first read; call Reload to pick up on-disk edits without a
// restart.
type DiskLoader struct {
	root        string
	defaultText string

	mu    sync.RWMutex
	cache map[string]string
}

// NewDiskLoader returns a loader rooted at root. defaultText is returned by
// GetText for any code with no matching file, mirroring the original
// loader's fallback-to-default-text behavior.
func NewDiskLoader(root, defaultText string) *DiskLoader {
	return &DiskLoader{
		root:        root,
		defaultText: defaultText,
		cache:       make(map[string]string),
	}
}

// GetText implements fsm.StaticLoader.
func (l *DiskLoader) GetText(code string) (string, error) {
	if text, ok := l.lookup(code); ok {
		return text, nil
	}

	path := l.assetPath(code)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.store(code, l.defaultText)
			return l.defaultText, nil
		}
		return "", fmt.Errorf("textview: read %s: %w", path, err)
	}

	text := string(raw)
	l.store(code, text)
	return text, nil
}

// Reload drops the cache, so the next GetText for each code re-reads disk.
func (l *DiskLoader) Reload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]string)
}

func (l *DiskLoader) lookup(code string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	text, ok := l.cache[code]
	return text, ok
}

func (l *DiskLoader) store(code, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache[code] = text
}

func (l *DiskLoader) assetPath(code string) string {
	return filepath.Join(l.root, code+".md")
}
