package main

import "limeal.fr/gamepipe/cmd"

func main() {
	cmd.Execute()
}
