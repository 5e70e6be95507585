package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/source"
)

// WriteUnits writes units below root. Files whose content is unchanged are
// left alone so their modification time survives a rebuild. It returns the
// number of files written.
func WriteUnits(root string, units []codegen.OutputUnit) (int, []diag.Diagnostic) {
	var diags []diag.Diagnostic
	written := 0
	for _, u := range units {
		p := filepath.Join(root, filepath.FromSlash(u.Path))
		if old, err := os.ReadFile(p); err == nil && bytes.Equal(old, u.Content) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			diags = append(diags, writeError(u, err))
			continue
		}
		if err := os.WriteFile(p, u.Content, 0o644); err != nil {
			diags = append(diags, writeError(u, err))
			continue
		}
		written++
	}
	return written, diags
}

func writeError(u codegen.OutputUnit, err error) diag.Diagnostic {
	return diag.NewError(diag.IOWriteError, source.Span{}, fmt.Sprintf("write %s: %v", u.Path, err))
}
