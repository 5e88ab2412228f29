package main

import "github.com/Norgate-AV/scc/cmd"

func main() {
	cmd.Execute()
}
