package zip

import (
	archive "archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	data := ArchiveAssets([]Asset{
		{Filename: "candidate-01.png", Data: []byte("first")},
		{Filename: "candidate-02.png", Data: []byte("second")},
	})
	if len(data) == 0 {
		t.Fatal("empty archive")
	}

	zr, err := archive.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("files = %d", len(zr.File))
	}
	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	content, _ := io.ReadAll(rc)
	if string(content) != "second" {
		t.Fatalf("entry content = %q", content)
	}
}

func TestCandidateFilename(t *testing.T) {
	if got := CandidateFilename(0, "image/png"); got != "candidate-01.png" {
		t.Fatalf("got %q", got)
	}
	if got := CandidateFilename(2, "image/jpeg"); got != "candidate-03.jpg" {
		t.Fatalf("got %q", got)
	}
	if got := CandidateFilename(1, ""); got != "candidate-02.png" {
		t.Fatalf("got %q", got)
	}
}
