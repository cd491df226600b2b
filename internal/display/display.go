// Package display previews saved images inline in terminals that speak the
// kitty graphics protocol.
package display

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"slices"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

var ErrUnsupportedTerminal = errors.New("terminal does not support inline images")

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type Displayer struct {
	out    io.Writer
	getenv func(string) string
}

func New(out io.Writer, getenv func(string) string) *Displayer {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Displayer{out: out, getenv: getenv}
}

func (d *Displayer) Supported() bool {
	return IsTerminalSupported(d.getenv)
}

// Show renders the image at path. PNG files are sent as they are; other
// formats are converted to PNG first.
func (d *Displayer) Show(path string) error {
	if !d.Supported() {
		return ErrUnsupportedTerminal
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	r, err := asPNG(f)
	if err != nil {
		return err
	}

	wrote, err := NewKittyEncoder(d.out).Encode(r)
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if wrote {
		fmt.Fprintln(d.out)
	}
	return nil
}

func asPNG(r io.ReadSeeker) (io.Reader, error) {
	header := make([]byte, len(pngMagic))
	n, _ := io.ReadFull(r, header)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind image: %w", err)
	}
	if n == 0 {
		return r, nil
	}
	if bytes.Equal(header[:n], pngMagic) {
		return r, nil
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to convert image to png: %w", err)
	}
	return &buf, nil
}

// IsTerminalSupported reports whether the terminal described by the
// environment renders kitty graphics.
func IsTerminalSupported(getenv func(string) string) bool {
	termProgram := strings.ToLower(getenv("TERM_PROGRAM"))
	if slices.Contains([]string{"kitty", "ghostty", "iterm.app", "wezterm"}, termProgram) {
		return true
	}

	if getenv("KITTY_WINDOW_ID") != "" || getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
