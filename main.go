package main

import "github.com/muxworks/mux/cmd"

func main() {
	cmd.Execute()
}
