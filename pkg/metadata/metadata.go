// Package metadata asks an external media extractor (yt-dlp) about a page and
// reads the thumbnails it reports.
package metadata

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Thumbnail is one preview image reported by the extractor. Width is nil when
// the extractor did not report one.
type Thumbnail struct {
	URL   string
	Width *int
}

// Info is the subset of extractor output the resolver cares about.
type Info struct {
	Thumbnail  string
	Thumbnails []Thumbnail
}

// Extractor returns metadata for a page URL.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (*Info, error)
}

// Best returns the widest thumbnail that has a URL, treating a missing width
// as zero and keeping the first of equal widths, or the single thumbnail field
// when no listed thumbnail has one.
func (i *Info) Best() (string, bool) {
	if i == nil {
		return "", false
	}
	if len(i.Thumbnails) > 0 {
		thumbs := make([]Thumbnail, len(i.Thumbnails))
		copy(thumbs, i.Thumbnails)
		sort.SliceStable(thumbs, func(a, b int) bool {
			return width(thumbs[a]) > width(thumbs[b])
		})
		for _, t := range thumbs {
			if t.URL != "" {
				return t.URL, true
			}
		}
	}
	if i.Thumbnail != "" {
		return i.Thumbnail, true
	}
	return "", false
}

func width(t Thumbnail) int {
	if t.Width == nil {
		return 0
	}
	return *t.Width
}

// Parse reads yt-dlp's --dump-single-json output.
func Parse(data []byte) (*Info, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("metadata output is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("metadata output is not an object")
	}

	info := &Info{Thumbnail: root.Get("thumbnail").String()}
	root.Get("thumbnails").ForEach(func(_, t gjson.Result) bool {
		thumb := Thumbnail{URL: t.Get("url").String()}
		if w := t.Get("width"); w.Type == gjson.Number {
			n := int(w.Int())
			thumb.Width = &n
		}
		info.Thumbnails = append(info.Thumbnails, thumb)
		return true
	})
	return info, nil
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// YtDlp runs the yt-dlp binary without downloading anything.
type YtDlp struct {
	Binary  string
	Timeout time.Duration
	Run     Runner
}

// NewYtDlp returns an extractor for binary, defaulting to "yt-dlp" on PATH.
func NewYtDlp(binary string, timeout time.Duration) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{Binary: binary, Timeout: timeout, Run: execRunner}
}

func (y *YtDlp) Extract(ctx context.Context, pageURL string) (*Info, error) {
	if y.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.Timeout)
		defer cancel()
	}

	run := y.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, y.Binary,
		"--dump-single-json",
		"--skip-download",
		"--flat-playlist",
		"--no-warnings",
		"--quiet",
		pageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", y.Binary, err)
	}
	return Parse(out)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Nop never finds anything.
type Nop struct{}

func (Nop) Extract(context.Context, string) (*Info, error) { return nil, nil }
