package decode

import (
	"bufio"
	"fmt"
	"io"

	"github.com/shuokabe/wfsttrain/pkg/wfst"
)

// DumpFST writes lat's current arc weights (each arc's psi, after
// PreparePsi or a full Decode has run) as a compact WFST text file,
// reusing the lattice input format of spec.md 6 so the result can
// feed back into another tool as a single-weight transducer
// (spec.md 4.8's alternate dump mode).
func (d *Decoder) DumpFST(lat *wfst.Lattice, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i := range lat.Arcs {
		e := &lat.Arcs[i]
		if _, err := fmt.Fprintf(bw, "%d %d %s %s %v\n", e.Src, e.Dst, e.ILabel.Text, e.OLabel.Text, e.Psi); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(bw, "%d\nEOS\n", lat.Final); err != nil {
		return err
	}
	return bw.Flush()
}
