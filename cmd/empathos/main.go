package main

import "empathos.app/relay/internal/cli"

func main() {
	cli.Execute()
}
