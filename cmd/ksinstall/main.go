package main

import "ksinstall/internal/cli"

func main() {
	cli.Execute()
}
