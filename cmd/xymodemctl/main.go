// Command xymodemctl is a demo harness for the xymodem package: it
// wires a real serial port to XModemSend/XModemReceive and
// YModemSend/YModemReceive so the protocol engine can be exercised
// against a physical or virtual serial line. It is not part of the
// xymodem package's supported API.
package main

import (
	"fmt"
	"os"

	"github.com/xx25/go-xymodem/cmd/xymodemctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
