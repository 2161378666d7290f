// Package pkg holds the libraries behind the fossensics command.
//
// # Overview
//
// fossensics audits a completed Buildroot build: which programs were
// installed, which package built each one, and whether every package has
// legal information. The libraries are organized by concern:
//
//  1. [buildtree] - build directory layout and strip program discovery
//  2. [toolexec] - running the external analysis tools
//  3. [origin] - turning build directories into package names
//  4. [stats] - aggregating the artifacts into counts and a histogram
//  5. [pipeline] - the staged inspection tying the above together
//  6. [render] - the package -> program graph
//
// Supporting packages: [artifact] (artifact names and file helpers),
// [config] (TOML configuration), [errors] (coded errors),
// [observability] (progress hooks) and [buildinfo] (version stamps).
//
// # Data Flow
//
//	<build>/target
//	     ↓ grissom-scan                  progs.txt
//	     ↓ grissom-deps                  deps.txt
//	     ↓ grissom-origin                origins.txt, orphans.txt
//	     ↓ [origin.Refine]               packages.txt
//	     ↓ grissom-legal-info            licenses.txt, undocumented.txt
//	     ↓ [stats.Compute]
//	Statistics
//
// # Quick Start
//
//	in, err := pipeline.New("/home/user/buildroot/output")
//	if err != nil {
//	    return err
//	}
//	res, err := in.Inspect(ctx, "fossensics-report")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d orphans\n", res.Statistics.Orphans)
package pkg
