package main

import "github.com/witos44/UserAuthSystem/cmd"

func main() {
	cmd.Execute()
}
