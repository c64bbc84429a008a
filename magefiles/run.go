//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Tests runs the package tests.
func (Run) Tests() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Race runs the package tests with the race detector.
func (Run) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."), withStream())
	return err
}

// Coverage writes coverage.out for the renderer packages.
func (Run) Coverage() error {
	_, err := executeCmd("go", withArgs("test", "-coverprofile=coverage.out", "./engine/..."), withStream())
	return err
}
