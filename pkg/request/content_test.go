package request

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestGrowContentClampsAtLimit(t *testing.T) {
	r := New(nil, nil, WithContentSizeLimit(10))
	r.GrowContent([]byte("aaaaaa"))
	if r.ContentTooLarge() {
		t.Error("ContentTooLarge after 6 of 10 bytes")
	}
	r.GrowContent([]byte("bbbbbb"))

	if got := r.Content(); got != "aaaaaabbbb" {
		t.Errorf("Content = %q, want %q", got, "aaaaaabbbb")
	}
	if !r.ContentTooLarge() {
		t.Error("ContentTooLarge = false at the limit")
	}

	r.GrowContent([]byte("more"))
	if len(r.Content()) != 10 {
		t.Errorf("content grew past the limit: %d bytes", len(r.Content()))
	}
}

func TestContentUnlimitedByDefault(t *testing.T) {
	r := New(nil, nil)
	if r.ContentSizeLimit() != NoContentLimit {
		t.Errorf("ContentSizeLimit = %d, want NoContentLimit", r.ContentSizeLimit())
	}

	big := bytes.Repeat([]byte("x"), 1<<16)
	r.GrowContent(big)
	if len(r.ContentBytes()) != len(big) {
		t.Errorf("len = %d, want %d", len(r.ContentBytes()), len(big))
	}
	if r.ContentTooLarge() {
		t.Error("ContentTooLarge without a limit")
	}
}

func TestSetContentSizeLimit(t *testing.T) {
	r := New(nil, nil)
	r.SetContent("hello world")

	r.SetContentSizeLimit(5)
	if r.Content() != "hello" {
		t.Errorf("Content = %q, want truncated to hello", r.Content())
	}

	r.SetContentSizeLimit(-1)
	if r.ContentSizeLimit() != NoContentLimit {
		t.Errorf("negative limit: got %d", r.ContentSizeLimit())
	}
	if r.ContentTooLarge() {
		t.Error("ContentTooLarge after removing the limit")
	}
}

func TestSetContentReplaces(t *testing.T) {
	r := New(nil, nil, WithContentSizeLimit(4))
	r.SetContent("abcdef")
	if r.Content() != "abcd" {
		t.Errorf("Content = %q, want abcd", r.Content())
	}
	r.SetContent("x")
	if r.Content() != "x" {
		t.Errorf("Content = %q, want x", r.Content())
	}
}

func TestContentBytesNotOverwritten(t *testing.T) {
	r := New(nil, nil)
	r.SetContent("abcdef")
	before := r.ContentBytes()

	r.SetContent("xyz")
	if string(before) != "abcdef" {
		t.Errorf("SetContent rewrote an earlier slice: %q", before)
	}

	held := r.ContentBytes()
	r.SetContentSizeLimit(1)
	r.SetContentSizeLimit(-1)
	r.GrowContent([]byte("QQ"))
	if string(held) != "xyz" {
		t.Errorf("GrowContent after truncation rewrote an earlier slice: %q", held)
	}
	if r.Content() != "xQQ" {
		t.Errorf("Content = %q, want xQQ", r.Content())
	}
}

func TestZeroLimit(t *testing.T) {
	r := New(nil, nil, WithContentSizeLimit(0))
	r.GrowContent([]byte("a"))
	if r.Content() != "" {
		t.Errorf("Content = %q, want empty", r.Content())
	}
	if !r.ContentTooLarge() {
		t.Error("ContentTooLarge should hold for a zero limit")
	}
}

func TestWriteDrainsSource(t *testing.T) {
	r := New(nil, nil, WithContentSizeLimit(8))
	src := strings.NewReader(strings.Repeat("z", 100))

	n, err := io.Copy(r, src)
	if err != nil {
		t.Fatalf("io.Copy error: %v", err)
	}
	if n != 100 {
		t.Errorf("copied %d bytes, want 100", n)
	}
	if r.Content() != "zzzzzzzz" {
		t.Errorf("Content = %q", r.Content())
	}
}
