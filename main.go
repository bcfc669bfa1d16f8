package main

import "github.com/KaramelBytes/vo2scope/cmd"

func main() {
	cmd.Execute()
}
