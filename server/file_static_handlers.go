package server

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed static/*
var staticFiles embed.FS

// StaticFilesFS is the embedded asset tree rooted at static/
func StaticFilesFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create sub filesystem: " + err.Error())
	}
	return subFS
}

// StreamFile serves one embedded asset. Range and conditional requests are
// handled by http.ServeContent.
func StreamFile(w http.ResponseWriter, r *http.Request, fileName string) error {
	name := strings.TrimPrefix(path.Clean("/"+fileName), "/")
	data, err := fs.ReadFile(StaticFilesFS(), name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fileName, err)
	}
	w.Header().Set("Content-Type", assetContentType(name, data))
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
	return nil
}

func assetContentType(name string, data []byte) string {
	ctype := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	if strings.HasPrefix(ctype, "text/") && !strings.Contains(strings.ToLower(ctype), "charset=") {
		ctype += "; charset=utf-8"
	}
	return ctype
}
