// Package main is the entry of pagingsim, a simulator of demand-paged
// virtual memory.
package main

import "github.com/sarchlab/vmsim/pagingsim/cmd"

func main() {
	cmd.Execute()
}
