package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/fossensics/fossensics/pkg/errors"
	"github.com/fossensics/fossensics/pkg/origin"
)

// Format is an output format of [Render].
type Format string

const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatDOT, FormatSVG}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatSVG:
		return f, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot or svg)", s)
}

// Options configures diagram generation.
type Options struct {
	// Detailed adds the program count to package labels.
	Detailed bool
}

// ToDOT converts package records to Graphviz DOT source. Packages appear
// in first-seen order, each followed by its programs in record order.
// Duplicate records yield a single edge.
func ToDOT(pkgs []origin.Package, opts Options) string {
	var order []string
	programs := make(map[string][]string)
	seen := make(map[origin.Package]bool)
	for _, p := range pkgs {
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, ok := programs[p.Name]; !ok {
			order = append(order, p.Name)
		}
		programs[p.Name] = append(programs[p.Name], p.Program)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=rounded, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=1.0;\n")
	buf.WriteString("  nodesep=0.2;\n")

	for _, name := range order {
		progs := programs[name]
		buf.WriteString("\n")
		fmt.Fprintf(&buf, "  %q [%s];\n", pkgNodeID(name), strings.Join(pkgAttrs(name, len(progs), opts.Detailed), ", "))
		for _, prog := range progs {
			fmt.Fprintf(&buf, "  %q [label=%q];\n", progNodeID(prog), prog)
			fmt.Fprintf(&buf, "  %q -> %q;\n", pkgNodeID(name), progNodeID(prog))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// Packages and programs use separate node ID spaces.
func pkgNodeID(name string) string  { return "pkg:" + name }
func progNodeID(path string) string { return "prog:" + path }

func pkgAttrs(name string, programs int, detailed bool) []string {
	label := name
	if detailed {
		label = fmt.Sprintf("%s\n%d program(s)", name, programs)
	}
	return []string{
		fmt.Sprintf("label=%q", label),
		"style=\"rounded,filled\"",
		"fillcolor=lightblue",
	}
}

// Render produces the diagram in the given format.
func Render(ctx context.Context, dot string, format Format) ([]byte, error) {
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(ctx, dot)
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "unknown format %q", format)
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with one
// that scales to its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
