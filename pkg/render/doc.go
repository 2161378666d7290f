// Package render draws the package -> program attribution of an
// inspection as a node-link diagram.
//
// # Overview
//
// [ToDOT] turns the records of packages.txt into Graphviz DOT source: one
// filled box per package with an arrow to a plain box for every program
// it installed. [RenderSVG] lays the graph out with an embedded Graphviz
// build, so no dot binary needs to be installed.
//
// # Usage
//
//	f, _ := os.Open("fossensics-report/packages.txt")
//	pkgs, err := origin.ReadPackages(f)
//	if err != nil {
//	    return err
//	}
//	dot := render.ToDOT(pkgs, render.Options{Detailed: true})
//	svg, err := render.RenderSVG(ctx, dot)
//
// [Render] dispatches on a [Format] for callers that take the format from
// a flag.
package render
