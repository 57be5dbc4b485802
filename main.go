package main

import "example.com/volunteerhub/services/signup/cmd"

func main() {
	cmd.Execute()
}
