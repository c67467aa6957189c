package main

import (
	"os"

	"github.com/jandubois/snmp-probe/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
