package main

import "github.com/oshokin/release-pipeline/cmd/release-gate/cmd"

func main() {
	cmd.Execute()
}
