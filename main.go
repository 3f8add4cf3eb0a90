package main

import "github.com/tanq16/multiget/cmd"

func main() {
	cmd.Execute()
}
