//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

var LocalBin = filepath.Join(os.Getenv("PWD"), "/bin")

func binaryWithExt(name string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("%s.exe", name)
	}
	return name
}

func makeLocalBin() error {
	if _, err := os.Stat(LocalBin); os.IsNotExist(err) {
		err = os.MkdirAll(LocalBin, os.ModePerm)
		if err != nil {
			return err
		}
	}
	return nil
}
