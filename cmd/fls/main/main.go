package main

import (
	"fmt"
	"os"

	"github.com/arthur-debert/fls/cmd/fls"
	"github.com/arthur-debert/fls/pkg/ui/styles"
)

func main() {
	rootCmd := fls.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		errorStyle := styles.GetStyle("Error")
		fmt.Fprintln(os.Stderr, errorStyle.Render(fls.UserMessage(err)))
		os.Exit(1)
	}
}
