package main

import "github.com/oshokin/release-pipeline/cmd/update-agent/cmd"

func main() {
	cmd.Execute()
}
