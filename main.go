package main

import "github.com/chairdump/chairdump/cmd"

func main() {
	cmd.Execute()
}
