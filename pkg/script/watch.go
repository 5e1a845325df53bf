package script

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the script directory. Each write or
// create of a *.lua file sends the changed path on the returned channel;
// the server coalesces signals into a full host rebuild. Closing stop shuts
// the watcher down.
func Watch(dir string, stop <-chan struct{}) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	changes := make(chan string, 8)
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".lua") {
					continue
				}
				log.Printf("SCRIPT: changed on disk: %s", filepath.Base(event.Name))
				select {
				case changes <- event.Name:
				default:
					// Reload already pending; drop the duplicate signal.
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("SCRIPT: watcher error: %v", err)
			case <-stop:
				return
			}
		}
	}()

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	log.Printf("SCRIPT: watching %s for changes", dir)
	return changes, nil
}
