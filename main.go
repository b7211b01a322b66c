package main

import "github.com/creativeprojects/mailwatch/cmd"

func main() {
	cmd.Execute()
}
