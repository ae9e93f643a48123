package main

import "github.com/KaramelBytes/tabletalk-cli/cmd"

func main() {
	cmd.Execute()
}
