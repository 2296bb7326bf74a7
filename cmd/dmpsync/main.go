package main

import "github.com/dmphub/dmpsync/cmd/dmpsync/commands"

func main() {
	commands.Execute()
}
