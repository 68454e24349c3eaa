package main

import (
	"os"
)

func main() {
	cmd := newRootCommand()
	args := os.Args
	if args != nil {
		args = args[1:]
		cmd.SetArgs(args)
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
