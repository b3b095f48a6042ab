package main

import "github.com/planfold/planfold/cmd"

func main() {
	cmd.Execute()
}
