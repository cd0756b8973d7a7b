package camera

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DirDevice plays back still images from a directory in name order, looping.
// Images added or removed while the device is open join the rotation.
type DirDevice struct {
	dir     string
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	files  []string
	next   int
	closed bool
}

// DirOpener maps device indices onto directories
func DirOpener(dirs []string) Opener {
	return func(index int) (Device, error) {
		if index < 0 || index >= len(dirs) {
			return nil, fmt.Errorf("%w: index %d", ErrNoDevice, index)
		}
		dev, err := OpenDir(dirs[index])
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}

// OpenDir opens a directory of .jpg/.jpeg/.png files as a device
func OpenDir(dir string) (*DirDevice, error) {
	files, err := listImages(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrNoDevice, dir)
	}

	d := &DirDevice{dir: dir, files: files}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️ Not watching %s for new images: %v", dir, err)
		return d, nil
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		log.Printf("⚠️ Not watching %s for new images: %v", dir, err)
		return d, nil
	}
	d.watcher = w
	go d.watch()

	return d, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// watch exits when Close closes the watcher's channels
func (d *DirDevice) watch() {
	for {
		select {
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				d.reload()
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ Watching %s: %v", d.dir, err)
		}
	}
}

// reload keeps the previous rotation if the directory is emptied
func (d *DirDevice) reload() {
	files, err := listImages(d.dir)
	if err != nil || len(files) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.files = files
	if d.next >= len(files) {
		d.next = 0
	}
}

// Len returns how many images are in the rotation
func (d *DirDevice) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.files)
}

// ReadFrame decodes the next image in the directory
func (d *DirDevice) ReadFrame() (image.Image, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("device closed")
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Close releases the device
func (d *DirDevice) Close() error {
	d.mu.Lock()
	wasClosed := d.closed
	d.closed = true
	d.mu.Unlock()

	if !wasClosed && d.watcher != nil {
		return d.watcher.Close()
	}
	return nil
}
