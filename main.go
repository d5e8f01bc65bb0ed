package main

import "github.com/nextlevelbuilder/waclaw/cmd"

func main() {
	cmd.Execute()
}
