package main

import "github.com/mcoot/gamestore-lobby/internal/cli"

func main() {
	cli.Execute()
}
