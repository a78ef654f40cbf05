package main

import "github.com/MikhalGarbuz/analyze-your-life/internal/cli"

func main() {
	cli.Execute()
}
