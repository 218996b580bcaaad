// Package dropzone auto-ingests File-module jobs dropped onto the
// filesystem: an fsnotify recursive watch over every subdirectory,
// processing files already present on startup plus anything created
// afterward, with a 500ms settle delay before reading a freshly-created
// file, submitting each one through core.Core.Submit.
package dropzone

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"tsapi/internal/core"
	"tsapi/internal/models"
	"tsapi/internal/modules"
	"tsapi/pkg/logger"
)

const defaultFileModuleUID = "DefaultFileModule"

var audioExtensions = []string{
	".mp3", ".wav", ".flac", ".m4a", ".aac", ".ogg",
	".wma", ".mp4", ".avi", ".mov", ".mkv", ".webm",
}

// Service watches a directory and submits every dropped audio/video file
// as a new File-module job.
type Service struct {
	core         *core.Core
	watcher      *fsnotify.Watcher
	dropzonePath string
}

// New builds a Service rooted at dropzonePath.
func New(c *core.Core, dropzonePath string) *Service {
	return &Service{core: c, dropzonePath: dropzonePath}
}

// Start creates the dropzone directory if needed, processes any files
// already sitting in it, and begins watching for new ones. The watch loop
// runs in its own goroutine; Start returns once the watcher is armed.
func (s *Service) Start() error {
	if err := os.MkdirAll(s.dropzonePath, 0o755); err != nil {
		return fmt.Errorf("creating dropzone directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.addDirectoryRecursively(s.dropzonePath); err != nil {
		s.watcher.Close()
		return fmt.Errorf("watching dropzone directory: %w", err)
	}

	if err := s.processExistingFiles(); err != nil {
		logger.Warn("dropzone: failed to process some existing files", "error", err)
	}

	go s.watchFiles()

	logger.Info("dropzone service started", "path", s.dropzonePath)
	return nil
}

// Stop closes the watcher.
func (s *Service) Stop() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func (s *Service) addDirectoryRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Warn("dropzone: error accessing path", "path", path, "error", err)
			return nil
		}
		if info.IsDir() {
			if err := s.watcher.Add(path); err != nil {
				logger.Warn("dropzone: failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

func (s *Service) processExistingFiles() error {
	return filepath.Walk(s.dropzonePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Warn("dropzone: error accessing path", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() && isAudioFile(path) {
			s.processFile(path)
		}
		return nil
	})
}

func (s *Service) watchFiles() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := s.addDirectoryRecursively(event.Name); err != nil {
					logger.Warn("dropzone: failed to watch new directory", "path", event.Name, "error", err)
				}
				continue
			}
			s.processFile(event.Name)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("dropzone: watcher error", "error", err)
		}
	}
}

func isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range audioExtensions {
		if ext == valid {
			return true
		}
	}
	return false
}

// processFile submits one dropped file as a new File-module job, then
// removes it from the dropzone on success.
func (s *Service) processFile(path string) {
	time.Sleep(500 * time.Millisecond)

	if !isAudioFile(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	uid := uuid.NewString()
	f, err := os.Open(path)
	if err != nil {
		logger.Error("dropzone: failed to open dropped file", "path", path, "error", err)
		return
	}
	err = modules.SaveUpload(s.core.Config.AudioInputDir, uid, f)
	f.Close()
	if err != nil {
		logger.Error("dropzone: failed to save dropped file", "path", path, "error", err)
		return
	}

	title := filepath.Base(path)
	now := time.Now()
	entry := &models.Entry{
		UID:        uid,
		ModuleUID:  defaultFileModuleUID,
		ModuleType: models.ModuleTypeFile,
		Priority:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
		Title:      &title,
	}
	if err := s.core.Submit(context.Background(), entry, 0); err != nil {
		logger.Error("dropzone: failed to submit job", "path", path, "error", err)
		return
	}

	removeWithRetry(path)
	logger.Info("dropzone: submitted job", "uid", uid, "source", path)
}

func removeWithRetry(path string) {
	var err error
	for i := 0; i < 5; i++ {
		if err = os.Remove(path); err == nil {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	logger.Warn("dropzone: failed to remove source file after retries", "path", path, "error", err)
}
