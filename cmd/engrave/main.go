package main

import "github.com/pupring/engrave/cmd/engrave/cmd"

func main() {
	cmd.Execute()
}
