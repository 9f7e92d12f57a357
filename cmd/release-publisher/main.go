package main

import "github.com/oshokin/release-pipeline/cmd/release-publisher/cmd"

func main() {
	cmd.Execute()
}
