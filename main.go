package main

import "github.com/mhoracek/homeframe/cmd"

func main() {
	cmd.Execute()
}
