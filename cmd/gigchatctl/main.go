package main

import (
	"os"

	"github.com/gigboard/gigchat/internal/ctl"
)

func main() {
	if err := ctl.New().Execute(); err != nil {
		os.Exit(1)
	}
}
