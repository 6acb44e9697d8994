package main

import "github.com/geocatalog/cmd/catalogctl/cmd"

func main() {
	cmd.Execute()
}
