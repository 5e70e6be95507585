package diagfmt

import (
	"fmt"
	"io"

	"idlc/internal/diag"
	"idlc/internal/source"
)

// Short prints one line per diagnostic: path:line:col: severity CODE message.
func Short(w io.Writer, bag *diag.Bag, fs *source.FileSet, mode PathMode) {
	for _, d := range bag.Items() {
		start, _ := fs.Resolve(d.Primary)
		fmt.Fprintf(w, "%s:%d:%d: %s %s %s\n",
			formatPath(fs.Get(d.Primary.File), fs, mode), start.Line, start.Col,
			d.Severity.Label(), d.Code.ID(), d.Message)
	}
}
