package main

import "github.com/nfrund/storefront/cmd/storefront/cmd"

func main() {
	cmd.Execute()
}
