package ui

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
)

func newTabby(w io.Writer) *tabby.Tabby {
	return tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
}

// Table prints rows under headers in aligned columns
func Table(w io.Writer, headers []string, rows [][]string) {
	t := newTabby(w)
	t.AddHeader(toAny(headers)...)
	for _, row := range rows {
		t.AddLine(toAny(row)...)
	}
	t.Print()
}

// Definitions prints "term: value" pairs with the values aligned
func Definitions(w io.Writer, pairs [][2]string) {
	t := newTabby(w)
	for _, p := range pairs {
		t.AddLine(p[0]+":", p[1])
	}
	t.Print()
}

// List prints a title followed by one arrow-prefixed line per item
func List(w io.Writer, title string, items []string) {
	if title != "" {
		fmt.Fprintln(w, title)
	}
	for _, item := range items {
		fmt.Fprintf(w, " → %s\n", item)
	}
}

// Mark renders a boolean as a check mark or a dash
func Mark(b bool) string {
	if b {
		return "✓"
	}
	return "-"
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
