package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/fls/cmd/fls"
	"github.com/arthur-debert/fls/internal/version"
)

func main() {
	rootCmd := fls.NewRootCmd()

	header := &doc.GenManHeader{
		Title:   "FLS",
		Section: "1",
		Source:  "fls " + version.Version,
		Manual:  "fls manual",
	}

	if err := doc.GenMan(rootCmd, header, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man page: %v\n", err)
		os.Exit(1)
	}
}
