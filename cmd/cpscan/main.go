// Command cpscan scans a classpath and links its type information graph.
package main

import "github.com/cpscan/cpscan/cmd/cpscan/cmd"

func main() {
	cmd.Execute()
}
