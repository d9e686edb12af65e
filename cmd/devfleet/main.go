package main

import "github.com/devfleet/devfleet/internal/cli"

func main() {
	cli.Execute()
}
