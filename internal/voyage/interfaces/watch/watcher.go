package watch

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	voyage "fleetsys/internal/voyage/domain"
	"fleetsys/internal/voyage/interfaces/excel"
)

const debounceInterval = 2 * time.Second

// Ingestor receives parsed voyage batches.
type Ingestor interface {
	IngestBatch(ctx context.Context, batch voyage.Batch) error
}

// Watcher ingests voyage workbooks dropped into a folder. One bad file is
// logged and skipped; the watcher keeps running.
type Watcher struct {
	dir      string
	ingestor Ingestor
	logger   *log.Logger
}

func NewWatcher(dir string, ingestor Ingestor, logger *log.Logger) (*Watcher, error) {
	if dir == "" {
		return nil, errors.New("watch: empty directory")
	}
	if ingestor == nil {
		return nil, errors.New("watch: nil ingestor")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{dir: dir, ingestor: ingestor, logger: logger}, nil
}

// Run watches the folder until the context is cancelled. Files already
// present at startup are processed first, then create/write events. Writes
// are debounced because spreadsheet saves arrive as several events.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.processFile(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	timers := map[string]*time.Timer{}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			path := event.Name
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(debounceInterval, func() {
				w.processFile(ctx, path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watch: %v", err)
		}
	}
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	if !eligible(path) {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		w.logger.Printf("watch: open %s: %v", path, err)
		return
	}
	defer f.Close()

	batch, err := excel.ParseWorkbook(f)
	if err != nil {
		w.logger.Printf("watch: parse %s: %v", filepath.Base(path), err)
		return
	}
	if err := w.ingestor.IngestBatch(ctx, *batch); err != nil {
		w.logger.Printf("watch: ingest %s: %v", filepath.Base(path), err)
		return
	}
	w.logger.Printf("watch: ingested %s vessel=%s voyage=%d reports=%d", filepath.Base(path), batch.VesselID, batch.VoyageNumber, len(batch.Reports))
}

// eligible skips spreadsheet lock files and anything that is not a
// workbook.
func eligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, "~$") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}
