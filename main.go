package main

import "github.com/mselser95/arb-scanner/cmd"

func main() {
	cmd.Execute()
}
