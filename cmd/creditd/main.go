// Command creditd serves the credit ledger API and runs the scheduled
// credit sweeper.
//
//	creditd migrate   apply database migrations
//	creditd serve     HTTP API plus the sweeper on its cron schedule
//	creditd sweep     one sweep pass, report printed as JSON
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
