package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// CredentialWatcher watches provider token files and reports rotations
// so operators can replace expiring credentials without a restart.
type CredentialWatcher struct {
	watcher *fsnotify.Watcher

	// vendorByPath maps an absolute token file path to its vendor
	vendorByPath map[string]string

	onRotate func(vendor, token string)
	done     chan struct{}
}

// NewCredentialWatcher starts watching every token_file in the
// configuration. onRotate is called with the vendor name and the new
// token after each change. Returns nil when no provider uses a token
// file.
func NewCredentialWatcher(cfg *Config, onRotate func(vendor, token string)) (*CredentialWatcher, error) {
	vendorByPath := make(map[string]string)
	for name, p := range cfg.Providers {
		if p.TokenFile == "" {
			continue
		}
		abs, err := filepath.Abs(p.TokenFile)
		if err != nil {
			return nil, err
		}
		vendorByPath[abs] = name
	}
	if len(vendorByPath) == 0 {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch parent directories so atomic renames are seen too.
	watched := make(map[string]bool)
	for path := range vendorByPath {
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
		watched[dir] = true
	}

	cw := &CredentialWatcher{
		watcher:      watcher,
		vendorByPath: vendorByPath,
		onRotate:     onRotate,
		done:         make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *CredentialWatcher) run() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			vendor, tracked := cw.vendorByPath[abs]
			if !tracked {
				continue
			}
			token, err := readTokenFile(abs)
			if err != nil {
				slog.Warn("token file changed but unreadable", "vendor", vendor, "error", err)
				continue
			}
			slog.Info("credential rotated", "vendor", vendor)
			cw.onRotate(vendor, token)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("credential watcher error", "error", err)
		case <-cw.done:
			return
		}
	}
}

// Close stops watching.
func (cw *CredentialWatcher) Close() error {
	close(cw.done)
	return cw.watcher.Close()
}
