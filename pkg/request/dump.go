package request

import (
	"fmt"
	"io"
	"strings"

	"github.com/rhuss/reqstate/pkg/debug"
)

// String renders a multi-line diagnostic dump of the request. It loads
// every lazy collection. Passwords are never included.
func (r *Request) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Request [user:%q] path:%q\n", r.method, r.User(), r.path)
	fmt.Fprintf(&b, "    Version [ %s ]\n", r.version)
	writeValues(&b, "Headers", r.Headers())
	writeValues(&b, "Footers", r.Footers())
	writeValues(&b, "Cookies", r.Cookies())
	writeValues(&b, "Query Args", r.Args())
	fmt.Fprintf(&b, "    Requestor [ %s ] Port [ %d ]\n", r.Requestor(), r.RequestorPort())
	fmt.Fprintf(&b, "    Content [ %d bytes ] %q\n", len(r.content), debug.Truncate(string(r.content), 64))
	return b.String()
}

func writeValues(b *strings.Builder, name string, v *Values) {
	b.WriteString("    ")
	b.WriteString(name)
	b.WriteString(" [")
	for k, val := range v.All() {
		fmt.Fprintf(b, "%s:%q ", k, val)
	}
	b.WriteString("]\n")
}

// Dump writes the diagnostic dump to w.
func (r *Request) Dump(w io.Writer) error {
	_, err := io.WriteString(w, r.String())
	return err
}
