package main

import "github.com/pratikwayal01/bore-interactive-inputs/cmd"

func main() {
	cmd.Execute()
}
