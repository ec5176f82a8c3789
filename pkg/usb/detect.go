package usb

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ochichan/lazarus/pkg/lazerr"
)

// marker is the sentinel file that identifies a directory as a Lazarus
// USB volume.
const marker = "lazarus.sync"

// mountRoots returns the directories this OS mounts removable volumes
// under. Linux additionally nests devices one level deeper under
// /run/media/<user>, handled separately by scanRunMediaUsers.
func mountRoots() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Volumes"}
	case "windows":
		return []string{`D:\`, `E:\`, `F:\`, `G:\`, `H:\`}
	default:
		return []string{"/media", "/mnt", "/run/media"}
	}
}

// LazarusUsb describes one detected volume: its path, display name,
// and a cheap summary of its content counts.
type LazarusUsb struct {
	Path         string
	Name         string
	HasManifest  bool
	NoteCount    int
	PostCount    int
	QnaCount     int
	PackageCount int
}

// TotalContent sums every collection's count.
func (u LazarusUsb) TotalContent() int {
	return u.NoteCount + u.PostCount + u.QnaCount + u.PackageCount
}

// IsEmpty reports whether the volume holds no content at all.
func (u LazarusUsb) IsEmpty() bool {
	return u.TotalContent() == 0
}

// IsLazarusUSB reports whether path contains the Lazarus marker file.
func IsLazarusUSB(path string) bool {
	_, err := os.Stat(filepath.Join(path, marker))
	return err == nil
}

// FromPath inspects path and returns its LazarusUsb description, or
// false if path is not a Lazarus volume.
func FromPath(path string) (LazarusUsb, bool) {
	if !IsLazarusUSB(path) {
		return LazarusUsb{}, false
	}
	name := filepath.Base(path)
	_, manifestErr := os.Stat(filepath.Join(path, "manifest.json"))

	return LazarusUsb{
		Path:         path,
		Name:         name,
		HasManifest:  manifestErr == nil,
		NoteCount:    countFilesWithExt(filepath.Join(path, "notes"), ".json"),
		PostCount:    countNonBlankLines(filepath.Join(path, "bulletin", "posts.jsonl")),
		QnaCount:     countNonBlankLines(filepath.Join(path, "qna", "questions.jsonl")),
		PackageCount: countFilesWithExt(filepath.Join(path, "packages"), ".laz"),
	}, true
}

func countFilesWithExt(dir, ext string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ext {
			count++
		}
	}
	return count
}

func countNonBlankLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			count++
		}
	}
	return count
}

// Scan walks every mount root for this OS and returns every directory
// directly beneath it (and, on Linux, beneath /run/media/<user>) that
// is a Lazarus volume.
func Scan() []LazarusUsb {
	var found []LazarusUsb
	for _, root := range mountRoots() {
		found = append(found, scanRoot(root)...)
		if runtime.GOOS == "linux" && root == "/run/media" {
			found = append(found, scanRunMediaUsers(root)...)
		}
	}
	return found
}

func scanRoot(root string) []LazarusUsb {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var found []LazarusUsb
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if usb, ok := FromPath(path); ok {
			found = append(found, usb)
		}
	}
	return found
}

func scanRunMediaUsers(root string) []LazarusUsb {
	users, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var found []LazarusUsb
	for _, u := range users {
		if !u.IsDir() {
			continue
		}
		found = append(found, scanRoot(filepath.Join(root, u.Name()))...)
	}
	return found
}

// InitUSB turns an existing directory into a Lazarus USB volume: it
// writes the marker file, creates the collection directories, and
// seeds a fresh manifest.json.
func InitUSB(path, deviceName string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return lazerr.New(lazerr.PathNotFound, "usb path does not exist or is not a directory: "+path)
	}

	if err := os.WriteFile(filepath.Join(path, marker), []byte("# Lazarus USB\n# Do not delete this file\n"), 0o644); err != nil {
		return err
	}
	for _, sub := range []string{"notes", "bulletin", "qna", "packages"} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0o755); err != nil {
			return err
		}
	}

	m := newManifest(deviceName)
	return SaveManifest(path, m)
}
