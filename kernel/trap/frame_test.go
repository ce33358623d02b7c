package trap

import (
	"bytes"
	"strings"
	"testing"
)

func TestFrameDumpToContainsKeyRegisters(t *testing.T) {
	f := &Frame{A0: 0xdead, Sepc: 0x8020_0000, Scause: 13}
	var buf bytes.Buffer
	f.DumpTo(&buf)

	out := buf.String()
	for _, want := range []string{"a0", "sepc", "scause"} {
		if !strings.Contains(out, want) {
			t.Errorf("DumpTo output missing %q: %s", want, out)
		}
	}
}
