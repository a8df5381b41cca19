// Command mirrorcheck verifies mirror types against their reference layouts
// and generates the compile-time layout assertions.
//
//	mirrorcheck                              verify the abi mirrors
//	mirrorcheck -framework 5.15.2            verify against an older profile
//	mirrorcheck -decl layouts.yaml           verify declarations from a file
//	mirrorcheck -pkg abi -emit zz_layout_assert.go
//	mirrorcheck -i                           browse results interactively
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/abi"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/mirror"
)

type options struct {
	decl      string
	framework string
	pkg       string
	emit      string
	color     string
}

func main() {
	var (
		opts        options
		verbose     = flag.Bool("v", false, "Log verification details")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.StringVar(&opts.decl, "decl", "", "Declaration file (YAML); defaults to the built-in abi mirrors")
	flag.StringVar(&opts.framework, "framework", "", "Framework version selecting layout profiles")
	flag.StringVar(&opts.pkg, "pkg", "abi", "Package name for generated assertions")
	flag.StringVar(&opts.emit, "emit", "", "Write layout assertions to this file")
	flag.StringVar(&opts.color, "color", "auto", "Colorize output: auto, always or never")
	flag.Parse()

	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer l.Sync()
		mirror.SetLogger(l)
	}

	if *interactive {
		if err := runInteractive(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, opts options) error {
	mirrors, framework, err := load(opts)
	if err != nil {
		return err
	}

	results := check(mirrors, framework)
	fmt.Fprint(w, newReport(w, opts.color).render(framework, results))

	if bad := failed(results); bad > 0 {
		return errors.New(errors.PhaseLayout, errors.KindInvalidData).
			Detail("%d of %d mirrors do not match their reference layout", bad, len(results)).
			Build()
	}

	if opts.emit == "" {
		return nil
	}
	src, err := mirror.AssertionSource(opts.pkg, framework, mirrors...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.emit, src, 0o644); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "write "+opts.emit)
	}
	fmt.Fprintf(w, "wrote %s\n", opts.emit)
	return nil
}

// load returns the mirrors to check and the framework version to check
// them against. A -framework flag overrides the declaration file.
func load(opts options) ([]mirror.Mirror, string, error) {
	if opts.framework != "" && mirror.Canonical(opts.framework) == "" {
		return nil, "", errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("invalid framework version %q", opts.framework))
	}
	if opts.decl == "" {
		return abi.Mirrors(), opts.framework, nil
	}

	f, err := mirror.LoadFile(opts.decl)
	if err != nil {
		return nil, "", err
	}
	decls, err := f.Declarations()
	if err != nil {
		return nil, "", err
	}
	mirrors, err := mirror.Bind(decls, abi.Types())
	if err != nil {
		return nil, "", err
	}

	framework := f.Framework
	if opts.framework != "" {
		framework = opts.framework
	}
	return mirrors, framework, nil
}

func check(mirrors []mirror.Mirror, framework string) []mirror.Result {
	v := mirror.NewVerifier(mirror.WithFrameworkVersion(framework))
	results := make([]mirror.Result, len(mirrors))
	for i, m := range mirrors {
		results[i] = v.Check(m)
	}
	return results
}

func failed(results []mirror.Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
