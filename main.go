package main

import (
	"os"

	"s3cleanup/cmd"
	"s3cleanup/config"
)

func main() {
	os.Exit(cmd.Execute(config.Load))
}
