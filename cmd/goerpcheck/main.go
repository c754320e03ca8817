package main

import "github.com/dbsmedya/goerpcheck/cmd/goerpcheck/cmd"

func main() {
	cmd.Execute()
}
