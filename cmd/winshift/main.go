package main

import "github.com/bryanchriswhite/winshift/cmd/winshift/commands"

func main() {
	commands.Execute()
}
