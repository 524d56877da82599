// Package main is the operator CLI of the MagicKit cache core.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
