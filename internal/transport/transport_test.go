package transport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSendRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(maxFileSize + 1); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c := &Client{}
	resp := c.FileSend("any;+;c1", path, "", "")
	if resp.OK || resp.ErrorCode != "SIZE_EXCEEDED" {
		t.Fatalf("expected SIZE_EXCEEDED, got %+v", resp)
	}
}

func TestFileSendMissingFile(t *testing.T) {
	c := &Client{}
	resp := c.FileSend("any;+;c1", "/nonexistent/path", "", "")
	if resp.OK || resp.ErrorCode != "SEND_FAILED" {
		t.Fatalf("expected SEND_FAILED for missing file, got %+v", resp)
	}
}
