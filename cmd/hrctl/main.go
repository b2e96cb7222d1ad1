package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-workforce-client/cmd/hrctl/cmd"
)

func main() {
	_ = godotenv.Load()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
