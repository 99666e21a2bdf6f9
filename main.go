package main

import "github.com/tora-tool/orareconcile/cmd"

func main() {
	cmd.Execute()
}
