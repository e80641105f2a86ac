//go:build mage

package main

import (
	"fmt"
	"os/exec"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, integration).
type Test mg.Namespace

// All runs unit tests, then integration tests.
func (Test) All() {
	mg.SerialDeps(Test.Unit, Test.Integration)
}

// Unit runs the tests that need nothing but the Go toolchain.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "./...")
}

// Integration runs the tests behind the integration build tag: the built
// listings binary end to end and Postgres in Docker through dockertest.
func (Test) Integration() error {
	if _, err := exec.LookPath("docker"); err != nil {
		fmt.Println("docker not found; skipping integration tests")
		return nil
	}
	return sh.RunV(binGo, "test", "-v", "-tags", "integration", "./...")
}
