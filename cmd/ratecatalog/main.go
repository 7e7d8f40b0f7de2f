package main

import "ratecatalog/internal/cli"

func main() {
	cli.Execute()
}
