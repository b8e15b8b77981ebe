package submission

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flitsinc/go-bridge/internal/idgen"
	"github.com/flitsinc/go-bridge/internal/schema"
)

const (
	// Text above this length is written to a file and replaced by a pointer
	// message so oversized payloads never flow back through the bridge
	// protocol.
	TextOverflowLimit = 4000

	maxImageBytes = 8 * 1024 * 1024
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Assembler turns a raw surface submission into the terminal instruction
// answer. Artifacts land in Dir (os.TempDir when empty); TextLimit overrides
// the overflow threshold (TextOverflowLimit when zero).
type Assembler struct {
	Dir       string
	TextLimit int
}

// Assemble persists each inline image to a uniquely named file and applies
// the text overflow policy. Per-image failures do not abort the submission:
// they surface as a warning prefix on the final text while the images that
// did save are still returned by path.
func (a *Assembler) Assemble(text string, images []string) schema.Answer {
	var saved []string
	var warnings []string

	for i, data := range images {
		path, err := a.saveImage(data)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("image %d not saved: %v", i+1, err))
			continue
		}
		saved = append(saved, path)
	}

	out := text
	if limit := a.textLimit(); len(out) > limit {
		path, err := a.saveText(out)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("overflow file not written: %v", err))
		} else {
			out = fmt.Sprintf("The answer was too long to send inline. Read the full text from %s", path)
		}
	}

	if len(warnings) > 0 {
		out = "[warning: " + strings.Join(warnings, "; ") + "]\n" + out
	}
	return schema.Instruction(out, saved)
}

func (a *Assembler) textLimit() int {
	if a.TextLimit > 0 {
		return a.TextLimit
	}
	return TextOverflowLimit
}

func (a *Assembler) dir() string {
	if a.Dir != "" {
		return a.Dir
	}
	return os.TempDir()
}

// saveImage decodes one self-describing data URI ("data:image/png;base64,...")
// and writes it next to the other submission artifacts.
func (a *Assembler) saveImage(dataURI string) (string, error) {
	mediaType, payload, err := splitDataURI(dataURI)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	if len(raw) > maxImageBytes {
		return "", fmt.Errorf("image too large (%d > %d bytes)", len(raw), maxImageBytes)
	}

	ext, ok := imageExtensions[mediaType]
	if !ok {
		ext = ".bin"
	}
	path := filepath.Join(a.dir(), idgen.Artifact("bridge-image", ext))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

func (a *Assembler) saveText(text string) (string, error) {
	path := filepath.Join(a.dir(), idgen.Artifact("bridge-answer", ".txt"))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write overflow file: %w", err)
	}
	return path, nil
}

func splitDataURI(dataURI string) (mediaType, payload string, err error) {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("data URI has no payload")
	}
	encoding := ""
	if mediaType, encoding, ok = strings.Cut(meta, ";"); !ok {
		mediaType = meta
	}
	if encoding != "base64" {
		return "", "", fmt.Errorf("unsupported data URI encoding %q", encoding)
	}
	return mediaType, payload, nil
}
