package main

import "github.com/khanhnv2901/idprecon/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
