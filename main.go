package main

import "github.com/encodeous/ddsroute/cmd"

func main() {
	cmd.Execute()
}
