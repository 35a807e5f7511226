package main

import "github.com/frahmantamala/trading-iam/cmd"

func main() {
	cmd.Execute()
}
