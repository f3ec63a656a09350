package main

import "github.com/mlpierce22/triplechat/cmd"

func main() {
	cmd.Execute()
}
