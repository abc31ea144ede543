package main

import "github.com/pocketledger/pocketledger/internal/cli"

func main() {
	cli.Execute()
}
