/*
bpmn-sol is a compiler from BPMN collaboration diagrams to Solidity smart contracts.

Usage:

	bpmn-sol [flags]
	bpmn-sol [command]

Available Commands:

	completion Generate the autocompletion script for the specified shell
	generate   Generate a Solidity contract from a BPMN collaboration diagram
	help       Help about any command
	history    List recorded compilation runs
	version    Show version

Use "bpmn-sol [command] --help" for more information about a command.
*/
package main

import (
	"os"

	"github.com/gclaussn/bpmn-sol/cli"
)

var (
	version = "unknown-version"
)

func main() {
	cli := cli.New(version)
	os.Exit(cli.Execute())
}
