// Package roster turns folders of image files into draw participants and
// placeholder choices. It only ever reads from disk.
package roster

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/DoyleJ11/raffle-draw-backend/internal/engine"
)

var ErrDirectoryRead = errors.New("directory read failure")
var ErrNoPlaceholder = errors.New("no placeholder available")

// ReadError keeps the underlying filesystem error for logging; clients only
// ever see ErrDirectoryRead.
type ReadError struct {
	Dir string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Dir, e.Err)
}

func (e *ReadError) Unwrap() []error { return []error{ErrDirectoryRead, e.Err} }

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Directory lists participant photos from one folder and placeholder
// images from another.
type Directory struct {
	ParticipantsDir string
	PlaceholdersDir string

	// Pick returns a value in [0, n). Defaults to rand.IntN.
	Pick func(n int) int
}

func NewDirectory(participantsDir, placeholdersDir string) *Directory {
	return &Directory{
		ParticipantsDir: participantsDir,
		PlaceholdersDir: placeholdersDir,
		Pick:            rand.IntN,
	}
}

// Participants returns one participant per image file, in listing order.
func (d *Directory) Participants(ctx context.Context) ([]engine.Participant, error) {
	names, err := readFiles(ctx, d.ParticipantsDir)
	if err != nil {
		return nil, err
	}

	participants := make([]engine.Participant, 0, len(names))
	for _, name := range names {
		if !IsImage(name) {
			continue
		}
		participants = append(participants, FromFilename(name))
	}
	return participants, nil
}

// RandomPlaceholder returns the filename of one placeholder image.
func (d *Directory) RandomPlaceholder(ctx context.Context) (string, error) {
	names, err := readFiles(ctx, d.PlaceholdersDir)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoPlaceholder
	}

	pick := d.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return names[pick(len(names))], nil
}

// IsImage reports whether a filename carries one of the accepted image extensions.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// FromFilename derives a participant from its photo filename:
// "jane-doe.png" becomes {jane-doe, "jane doe", "/jane-doe.png"}.
func FromFilename(name string) engine.Participant {
	id := strings.TrimSuffix(name, filepath.Ext(name))
	return engine.Participant{
		ID:    id,
		Name:  strings.ReplaceAll(id, "-", " "),
		Image: "/" + name,
	}
}

func readFiles(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ReadError{Dir: dir, Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
