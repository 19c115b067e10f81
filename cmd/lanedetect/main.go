package main

import "github.com/MeKo-Tech/lanedetect/cmd/lanedetect/cmd"

func main() {
	cmd.Execute()
}
