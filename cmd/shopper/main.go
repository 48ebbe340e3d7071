// Command shopper is a terminal client for the storefront API. The cart lives
// in a local data directory and is checked out against the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
