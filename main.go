package main

import "github.com/pandora-agent/pandora/cmd"

func main() {
	cmd.Execute()
}
