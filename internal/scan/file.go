package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blacktop/multipost/internal/logutil"
	"github.com/fsnotify/fsnotify"
	yaml "go.yaml.in/yaml/v3"
)

// draftFile is the on-disk composer:
//
//	text: hello
//	images: [https://example.com/a.png]
//	card:
//	  domain: example.com
type draftFile struct {
	Text   *string  `yaml:"text"`
	Images []string `yaml:"images"`
	Card   *struct {
		Domain *string `yaml:"domain"`
	} `yaml:"card"`
}

// FileSource reads a YAML draft file. Files without a .yaml/.yml extension
// are taken as plain text.
type FileSource struct {
	Path string
}

// Snapshot reads the file. A missing file yields an empty snapshot.
func (f FileSource) Snapshot() (Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read draft: %w", err)
	}
	return ParseDraftFile(f.Path, data)
}

// ParseDraftFile decodes draft file contents.
func ParseDraftFile(path string, data []byte) (Snapshot, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		text := strings.TrimRight(string(data), "\n")
		return Snapshot{Text: &text}, nil
	}

	var df draftFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return Snapshot{}, fmt.Errorf("decode draft %s: %w", path, err)
	}
	snap := Snapshot{Text: df.Text, ImageURLs: df.Images}
	if df.Card != nil {
		snap.CardPresent = true
		snap.CardDomain = df.Card.Domain
	}
	return snap, nil
}

// Watch feeds file changes at path into scanner until ctx is done, then
// closes the scanner.
func Watch(ctx context.Context, path string, scanner *Scanner) error {
	defer scanner.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch draft: %w", err)
	}
	defer w.Close()

	dir, file := filepath.Dir(path), filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logutil.Debugf("watching %s", path)

	scanner.Notify()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Compare by basename; editors often replace the file through a rename.
			if filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				scanner.Notify()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logutil.Warnf("draft watch error: %v", err)
		}
	}
}
