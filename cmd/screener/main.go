package main

import "screener-alerts/internal/cli"

func main() {
	cli.Execute()
}
