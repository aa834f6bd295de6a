package main

import "github.com/pricescout/backend/cmd/pricescout/cmd"

func main() {
	cmd.Execute()
}
