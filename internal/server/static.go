package server

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
)

type asset struct {
	contentType string
	body        []byte
}

// staticHandler serves the embedded frontend, minified once at startup.
type staticHandler struct {
	assets  map[string]asset
	modTime time.Time
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]json$`), json.Minify)
	return m
}

func newStaticHandler(root fs.FS) (*staticHandler, error) {
	m := newMinifier()
	h := &staticHandler{assets: make(map[string]asset), modTime: time.Now()}

	err := fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		raw, err := fs.ReadFile(root, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}

		contentType := mime.TypeByExtension(path.Ext(p))
		if contentType == "" {
			contentType = http.DetectContentType(raw)
		}
		mediaType, _, _ := mime.ParseMediaType(contentType)

		body, err := m.Bytes(mediaType, raw)
		if errors.Is(err, minify.ErrNotExist) {
			body = raw
		} else if err != nil {
			return fmt.Errorf("minify %s: %w", p, err)
		}
		h.assets["/"+p] = asset{contentType: contentType, body: body}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean(r.URL.Path)
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	a, ok := h.assets[p]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", a.contentType)
	http.ServeContent(w, r, p, h.modTime, bytes.NewReader(a.body))
}
