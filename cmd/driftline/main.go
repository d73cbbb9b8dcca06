package main

import (
	"fmt"
	"os"

	"github.com/driftline/driftline/internal/cmd"
	apperrors "github.com/driftline/driftline/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		// Distinguish "no such thing" from operational failures so
		// scripts can branch on the exit code.
		if apperrors.IsNotFound(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
