package main

import "github.com/user/scanforge/cmd"

func main() {
	cmd.Execute()
}
