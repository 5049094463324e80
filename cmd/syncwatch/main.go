package main

import "github.com/vietddude/syncwatch/internal/cli"

func main() {
	cli.Execute()
}
