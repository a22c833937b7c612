package main

import "desk-sentinel/internal/cli"

func main() {
	cli.Execute()
}
