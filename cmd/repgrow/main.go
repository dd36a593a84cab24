// Package main provides the repgrow CLI entrypoint.
//
// Usage:
//
//	repgrow run --side white --plies 6 --out repertoire.json [--config repgrow.yaml] [--start "e2e4 e7e5"]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/aaweaver-actuary/repgrow/internal/cliapp"
)

func main() {
	app := &cli.App{
		Name:           "repgrow",
		Usage:          "Build an opening repertoire tree from an engine-evaluation and game-popularity source",
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cliapp.RunCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler preserves the exit codes cliapp.RunCommand assigns via
// cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
