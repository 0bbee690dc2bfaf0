package main

import "github.com/peytonb/inboxtasks/cmd"

func main() {
	cmd.Execute()
}
