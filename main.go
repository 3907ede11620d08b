package main

import "github.com/frahmantamala/payment-orchestrator/cmd"

func main() {
	cmd.Execute()
}
