package main

import "github.com/nextlevelbuilder/msgcode/cmd"

func main() {
	cmd.Execute()
}
