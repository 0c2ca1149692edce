package main

import "dataguard/internal/cli"

func main() {
	cli.Execute()
}
