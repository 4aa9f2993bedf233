package server

import (
	"io"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchPromptTemplate calls reload whenever path is written, created or
// renamed. The parent directory is watched so editors that replace the file
// are handled.
func watchPromptTemplate(path string, reload func() error) (io.Closer, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := reload(); err != nil {
					log.Printf("prompt template reload failed: %v", err)
					continue
				}
				log.Printf("prompt template reloaded from %s", target)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("prompt template watcher: %v", err)
			}
		}
	}()
	return w, nil
}
