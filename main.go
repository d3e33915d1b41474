package main

import "github.com/dativo-io/warden/internal/cmd"

func main() {
	cmd.Execute()
}
