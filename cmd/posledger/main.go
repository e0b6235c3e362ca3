package main

import (
	"os"
	_ "time/tzdata"

	"github.com/smallbiznis/posledger/cmd/posledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
