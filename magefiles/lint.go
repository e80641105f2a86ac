//go:build mage

package main

import "github.com/magefile/mage/sh"

const binLint = "golangci-lint"

// Lint runs golangci-lint, including files behind the integration tag.
func Lint() error {
	return sh.RunV(binLint, "run", "--build-tags", "integration", "./...")
}
