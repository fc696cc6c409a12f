package hookproc

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the hook script file for external edits (e.g. outside
// hook_write/hook_patch) and logs them at debug level. It never invalidates
// frozen prompts or changes invocation behavior — purely observational.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
}

// WatchHookFile starts watching the workspace's hooks/ directory and logs
// events on the hook executable's path. Call Close to stop. A missing hook
// file is not an error; the watcher simply has nothing to report until the
// hook is created. A missing hooks/ directory is an error.
func WatchHookFile(ipc *IPC, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hookproc.watcher")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := ipc.workspace + "/hooks"
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fsw, logger: logger, done: make(chan struct{})}
	go w.run(ipc.Path())
	return w, nil
}

func (w *Watcher) run(hookPath string) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name == hookPath {
				w.logger.Debug("hook file changed externally", "op", event.Op.String())
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
