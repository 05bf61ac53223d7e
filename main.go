package main

import "github.com/agentic-research/contentgraph/cmd"

func main() {
	cmd.Execute()
}
