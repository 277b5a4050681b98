package main

import "github.com/sqlock/sqlock/cmd"

func main() {
	cmd.Execute()
}
