package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/inkwell/internal/apperr"
)

func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestRunScan_Report(t *testing.T) {
	root := writeSite(t, map[string]string{
		"content/hello.md":         "---\ntitle: Hello\ndate: 2024-05-01\n---\n![a](/images/used.png)\n",
		"content/drafts/wip.md":    "---\ndraft: true\n---\nwip\n",
		"static/images/used.png":   "",
		"static/images/orphan.gif": "",
	})
	var out bytes.Buffer
	err := RunScan(context.Background(), root, &out, WithConfig(NewDefaultConfig()), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	report := out.String()
	for _, want := range []string{"hello.md", "Hello", "2024-05-01", "drafts/wip.md", "wip", "2 post(s), 2 image(s)", "unreferenced images (1)", "orphan.gif"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if strings.Contains(report, "used.png") {
		t.Errorf("referenced image listed as unreferenced:\n%s", report)
	}
}

func TestRunScan_NotASite(t *testing.T) {
	root := writeSite(t, map[string]string{"README.md": "hi"})
	err := RunScan(context.Background(), root, io.Discard, WithConfig(NewDefaultConfig()), WithLogOutput(io.Discard))
	if !errors.Is(err, apperr.ErrNoContentDir) {
		t.Errorf("err = %v, want ErrNoContentDir", err)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}
}
