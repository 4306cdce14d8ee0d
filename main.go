package main

import (
	"os"

	"github.com/apiarylabs/hivewatch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
