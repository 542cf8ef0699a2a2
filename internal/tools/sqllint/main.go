// Command sqllint checks that every inline SQL constant starts with a unique
// `--sql <uuid>` marker line, the same contract infra.SQLRunner enforces at
// runtime.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: sqllint [path ...]   (default ./internal/sqlinline)")
	}
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"./internal/sqlinline"}
	}

	l := newLinter()
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(2)
		}
		switch {
		case info.IsDir():
			err = l.walk(target)
		case filepath.Ext(target) == ".go":
			err = l.file(target, nil)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(2)
		}
	}

	violations := l.sorted()
	if len(violations) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "sqllint: %d problem(s)\n", len(violations))
	for _, v := range violations {
		fmt.Fprintln(os.Stderr, "  "+v.String())
	}
	os.Exit(1)
}
