// Command tsapictl is the operator-facing command line client for a tsapi
// server: login, submit, status, delete, watch, and the background-service
// wrapper around watch.
package main

import "tsapi/internal/cli"

func main() {
	cli.Execute()
}
