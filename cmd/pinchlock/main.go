package main

import "github.com/pinchtab/pinchlock/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
