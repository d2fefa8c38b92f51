package main

import "github.com/Adam01140114/WaterData/cmd"

func main() {
	cmd.Execute()
}
