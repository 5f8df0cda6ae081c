package filewatch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/errs"
)

// Watcher calls onChange after the watched file is written or replaced.
// The parent directory is watched so editors that rename a temp file over the target are seen.
type Watcher struct {
	path     string
	onChange func()
	w        *fsnotify.Watcher
	wg       sync.WaitGroup
	once     sync.Once
}

func Start(ctx context.Context, path string, onChange func()) (*Watcher, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if onChange == nil {
		return nil, errors.New("change callback is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errs.Wrapf(err, "resolve %s", path)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Wrap(err, "create file watcher")
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, errs.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	w := &Watcher{path: abs, onChange: onChange, w: fw}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "filewatch"),
		slog.String("path", abs),
	)
	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logging.Info(ctx, "watched file changed", slog.String("op", ev.Op.String()))
			w.onChange()
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			logging.Warn(ctx, "file watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}

// Close stops watching and waits for an in-progress callback to return.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.w.Close()
		w.wg.Wait()
	})
	if err != nil {
		return errs.Wrap(err, "close file watcher")
	}
	return nil
}
