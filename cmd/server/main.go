// Command server runs the backoffice governance service and its operator tooling.
package main

import "os"

func main() {
	os.Exit(execute())
}
