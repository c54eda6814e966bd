package main

import "sheetbridge/cmd"

func main() {
	cmd.Execute()
}
