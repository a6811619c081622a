package main

import "github.com/dvornik/unnest/cmd"

func main() {
	cmd.Execute()
}
