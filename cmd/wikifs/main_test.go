package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wikifs/internal/config"
	"wikifs/internal/document"
	"wikifs/internal/rest"
	"wikifs/internal/wikierr"
)

func TestLoadConfigLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikifs.yaml")
	content := "url: http://file\nwiki: fromfile\nsync_path: /out\nsync_data_source: /src\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("WIKIFS_WIKI", "fromenv")
	t.Setenv("WIKIFS_TIMEOUT", "10s")

	cfg, opts, err := loadConfig([]string{
		"--config", path,
		"-u", "http://flag",
		"-H", "X-A: 1",
		"--header", "X-B: two",
		"--resume",
	})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.URL != "http://flag" {
		t.Errorf("Expected flag to win over file, got %q", cfg.URL)
	}
	if cfg.Wiki != "fromenv" {
		t.Errorf("Expected environment to win over file, got %q", cfg.Wiki)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.Timeout)
	}
	if cfg.Headers["X-A"] != "1" || cfg.Headers["X-B"] != "two" {
		t.Errorf("Expected headers from flags, got %v", cfg.Headers)
	}
	if !opts.resume || opts.printTree {
		t.Errorf("Unexpected options %+v", opts)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no action", nil},
		{"bad header", []string{"--sync", "/o", "--sync-data-source", "/s", "-H", "nocolon"}},
		{"extra argument", []string{"--sync", "/o", "--sync-data-source", "/s", "extra"}},
		{"unknown flag", []string{"--nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := loadConfig(tt.args); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestBuildStore(t *testing.T) {
	client := rest.New(rest.Config{BaseURL: "http://localhost"})

	cfg := config.Default()
	if store := buildStore(cfg, nil); store != nil {
		t.Errorf("Expected nil store without backends, got %T", store)
	}
	if _, ok := buildStore(cfg, client).(*rest.PageStore); !ok {
		t.Error("Expected the page store alone when only the wiki is configured")
	}

	cfg.XMLReadDir = "/in"
	cfg.XMLWriteDir = "/out"
	multi, ok := buildStore(cfg, client).(*document.Multi)
	if !ok {
		t.Fatal("Expected a multi store with xml directories")
	}
	if len(multi.Backends) != 3 {
		t.Fatalf("Expected 3 backends, got %d", len(multi.Backends))
	}
	if in := multi.Backends[1]; !in.Read || in.Write {
		t.Errorf("Expected read-only xml input, got %+v", in)
	}
	if out := multi.Backends[2]; out.Read || !out.Write {
		t.Errorf("Expected write-only xml output, got %+v", out)
	}
}

func TestPromptResolver(t *testing.T) {
	candidates := []document.Candidate{
		{Source: "wiki", Value: "a"},
		{Source: "xml-read", Value: "b"},
	}

	t.Run("no terminal", func(t *testing.T) {
		r := &promptResolver{out: &bytes.Buffer{}}
		if _, err := r.Resolve(context.Background(), "content", candidates); !errors.Is(err, wikierr.ErrSourceConflict) {
			t.Errorf("Expected ErrSourceConflict, got %v", err)
		}
	})

	t.Run("retries until valid", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := &promptResolver{
			in:  bufio.NewReader(strings.NewReader("x\n7\n2\n")),
			out: out,
			tty: true,
		}
		i, err := r.Resolve(context.Background(), "content", candidates)
		if err != nil || i != 1 {
			t.Errorf("Expected choice 1, got %d, %v", i, err)
		}
		if strings.Count(out.String(), "Invalid choice") != 2 {
			t.Errorf("Expected two rejected answers, got %q", out.String())
		}
	})

	t.Run("input closed", func(t *testing.T) {
		r := &promptResolver{
			in:  bufio.NewReader(strings.NewReader("")),
			out: &bytes.Buffer{},
			tty: true,
		}
		if _, err := r.Resolve(context.Background(), "title", candidates); !errors.Is(err, wikierr.ErrSourceConflict) {
			t.Errorf("Expected ErrSourceConflict, got %v", err)
		}
	})
}

func TestPreview(t *testing.T) {
	if got := preview("a\nb"); got != "a\\nb" {
		t.Errorf("Expected escaped newline, got %q", got)
	}
	if got := preview(strings.Repeat("x", 100)); len(got) != 63 {
		t.Errorf("Expected truncated preview, got %d bytes", len(got))
	}
}
