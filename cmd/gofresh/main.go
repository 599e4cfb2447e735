package main

import "github.com/dbsmedya/gofresh/cmd/gofresh/cmd"

func main() {
	cmd.Execute()
}
