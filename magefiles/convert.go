//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds the CLI and converts every Word document under dir.
func Convert(dir string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "convert", dir)
}

// Scan builds the CLI and lists the documents under dir.
func Scan(dir string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "scan", dir)
}

// Backends builds the CLI and reports the available conversion engines.
func Backends() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "backends")
}
