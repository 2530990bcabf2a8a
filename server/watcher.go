package server

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"MeloFM/logger"
	"MeloFM/model"
)

// watchMusicDir pushes a refresh_songs envelope whenever audio files
// appear in or vanish from the music directory, so connected engines
// refetch their listing. Returns a stop func.
func (s *DevServer) watchMusicDir() (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.cfg.MusicDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", s.cfg.MusicDir, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if !isAudioFile(event.Name) {
					continue
				}
				logger.Info("music dir changed, pushing refresh",
					logger.String("file", event.Name))
				s.hub.Broadcast(map[string]any{"type": model.MsgTypeRefreshSongs})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("music dir watcher error", logger.ErrorField(err))
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
