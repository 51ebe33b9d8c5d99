package main

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed all:frontend
var frontendFiles embed.FS

// statusPage returns the embedded status page assets rooted at frontend/.
func statusPage() (fs.FS, error) {
	sub, err := fs.Sub(frontendFiles, "frontend")
	if err != nil {
		return nil, fmt.Errorf("embedded frontend: %w", err)
	}
	return sub, nil
}
