// Package zip bundles generated candidates into a single downloadable
// archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Asset is one file in the archive.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets writes all assets into an in-memory zip. Assets that fail to
// be added are skipped rather than aborting the archive.
func ArchiveAssets(assets []Asset) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		w, err := zw.Create(asset.Filename)
		if err != nil {
			continue
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}

// CandidateFilename names a candidate slot's file inside the archive.
func CandidateFilename(index int, mime string) string {
	return fmt.Sprintf("candidate-%02d%s", index+1, extFromMIME(mime))
}

func extFromMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
