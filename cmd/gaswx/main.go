package main

import "gas-weather-analytics/internal/cli"

func main() {
	cli.Execute()
}
