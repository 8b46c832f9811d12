package main

import "github.com/joseph-ayodele/referral-intake/cmd/referrald/cmd"

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd.Execute(version + " (" + commit + ")")
}
