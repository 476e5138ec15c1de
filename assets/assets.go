// Package assets embeds the default item catalog and workbench recipe tables.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed data/*.yaml
var embedded embed.FS

// FS returns the embedded asset tree rooted at data/.
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		panic(err) // the embed pattern guarantees data/ exists
	}
	return sub
}
