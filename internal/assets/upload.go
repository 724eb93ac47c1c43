package assets

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/fsys"
)

const (
	defaultURLPrefix = "/images"
	jpegQuality      = 85
)

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Incoming is one file offered for upload.
type Incoming struct {
	Name string
	Data []byte
}

// Stored is a successfully written upload.
type Stored struct {
	Original string `json:"original"`
	Entry    Entry  `json:"entry"`
	// Markdown is the image snippet to insert into a post, newline terminated.
	Markdown string `json:"markdown"`
}

// UploadResult collects the outcome of a batch. Failed files do not stop the
// rest of the batch.
type UploadResult struct {
	Stored []Stored     `json:"stored"`
	Failed []Diagnostic `json:"-"`
}

// Markdown concatenates the snippets of every stored file.
func (r UploadResult) Markdown() string {
	var b strings.Builder
	for _, s := range r.Stored {
		b.WriteString(s.Markdown)
	}
	return b.String()
}

// Uploader writes images into the images folder under collision-free names.
type Uploader struct {
	// MaxBytes rejects larger files; zero means no limit.
	MaxBytes int64
	// MaxWidth downscales wider PNG and JPEG images; zero keeps them as is.
	MaxWidth int
	// URLPrefix is the public path of the images folder, "/images" by default.
	URLPrefix string
	Now       func() time.Time
}

// Upload stores files as "<unix-millis>-<sanitized-name><ext>". The i-th
// file of a batch gets the timestamp plus i.
func (u Uploader) Upload(ctx context.Context, images fsys.Folder, files []Incoming) (UploadResult, error) {
	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	stamp := now().UnixMilli()
	var res UploadResult
	for i, in := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		st, err := u.store(ctx, images, in, stamp+int64(i))
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed = append(res.Failed, Diagnostic{Path: in.Name, Err: err})
			continue
		}
		res.Stored = append(res.Stored, st)
	}
	return res, nil
}

func (u Uploader) store(ctx context.Context, images fsys.Folder, in Incoming, stamp int64) (Stored, error) {
	base, ext := SplitName(in.Name)
	if !slices.Contains(Exts, ext) {
		return Stored{}, fmt.Errorf("assets: %s: extension %q: %w", in.Name, ext, apperr.ErrUnsupportedMedia)
	}
	if u.MaxBytes > 0 && int64(len(in.Data)) > u.MaxBytes {
		return Stored{}, fmt.Errorf("assets: %s: %d bytes: %w", in.Name, len(in.Data), apperr.ErrTooLarge)
	}
	if m := mimetype.Detect(in.Data); !strings.HasPrefix(m.String(), "image/") {
		return Stored{}, fmt.Errorf("assets: %s: content is %s: %w", in.Name, m.String(), apperr.ErrUnsupportedMedia)
	}
	data, err := u.downscale(in.Data, ext)
	if err != nil {
		return Stored{}, fmt.Errorf("assets: %s: %w", in.Name, err)
	}

	var f fsys.File
	var name string
	for {
		name = fmt.Sprintf("%d-%s%s", stamp, Sanitize(base), ext)
		_, err := images.File(ctx, name, false)
		if errors.Is(err, apperr.ErrNotFound) {
			break
		}
		if err != nil {
			return Stored{}, err
		}
		stamp++
	}
	if f, err = images.File(ctx, name, true); err != nil {
		return Stored{}, err
	}
	if err := fsys.WriteFile(ctx, f, data); err != nil {
		return Stored{}, err
	}
	e, err := Probe(ctx, name, f)
	if err != nil {
		return Stored{}, err
	}
	prefix := strings.TrimRight(cmp.Or(u.URLPrefix, defaultURLPrefix), "/")
	return Stored{
		Original: in.Name,
		Entry:    e,
		Markdown: fmt.Sprintf("![%s](%s/%s)\n", base, prefix, name),
	}, nil
}

// downscale re-encodes PNG and JPEG images wider than MaxWidth.
func (u Uploader) downscale(data []byte, ext string) ([]byte, error) {
	if u.MaxWidth <= 0 || (ext != ".png" && ext != ".jpg" && ext != ".jpeg") {
		return data, nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= u.MaxWidth {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	h := max(1, bounds.Dy()*u.MaxWidth/bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, u.MaxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if ext == ".png" {
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// SplitName returns the base name and lowercased extension of a file name.
func SplitName(name string) (base, ext string) {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), strings.ToLower(ext)
}

// Sanitize replaces every character outside [a-zA-Z0-9] with '-' and
// lowercases the result.
func Sanitize(base string) string {
	s := strings.ToLower(unsafeNameRe.ReplaceAllString(base, "-"))
	if s == "" {
		return "image"
	}
	return s
}

// Delete removes the image at rel below the images folder.
func Delete(ctx context.Context, images fsys.Folder, rel string) error {
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if clean == "" {
		return fmt.Errorf("assets: delete %q: %w", rel, apperr.ErrInvalidName)
	}
	dir, name := path.Split(clean)
	parent, err := fsys.Resolve(ctx, images, dir, false)
	if err != nil {
		return fmt.Errorf("assets: delete %s: %w", clean, err)
	}
	if err := parent.Remove(ctx, name); err != nil {
		return fmt.Errorf("assets: delete %s: %w", clean, err)
	}
	return nil
}

// Lookup probes the image at rel below the images folder.
func Lookup(ctx context.Context, images fsys.Folder, rel string) (Entry, error) {
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if _, ext := SplitName(clean); !slices.Contains(Exts, ext) {
		return Entry{}, fmt.Errorf("assets: %q: %w", rel, apperr.ErrNotFound)
	}
	f, err := fsys.ResolveFile(ctx, images, clean, false)
	if err != nil {
		return Entry{}, err
	}
	return Probe(ctx, clean, f)
}
