package main

import "github.com/notargets/goparticles/cmd"

func main() {
	cmd.Execute()
}
