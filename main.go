package main

import "codedrop/cmd"

func main() {
	cmd.Execute()
}
