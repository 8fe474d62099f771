package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "create":
		return runCreate(args[1:], stdout, stderr)
	case "get":
		return runGet(args[1:], stdout, stderr)
	case "list":
		return runList(args[1:], stdout, stderr)
	case "depositors":
		return runDepositors(args[1:], stdout, stderr)
	case "deposit":
		return runContribution("deposit", args[1:], stdout, stderr)
	case "donate":
		return runContribution("donate", args[1:], stdout, stderr)
	case "purchase":
		return runCallerAction("purchase", args[1:], stdout, stderr)
	case "withdraw-bounty":
		return runCallerAction("withdraw-bounty", args[1:], stdout, stderr)
	case "refund":
		return runSettlement("refund", args[1:], stdout, stderr)
	case "withdraw-tokens":
		return runSettlement("withdraw-tokens", args[1:], stdout, stderr)
	case "events":
		return runEvents(args[1:], stdout, stderr)
	case "pause":
		return runPause(args[1:], stdout, stderr)
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`Usage:
  syndicatectl <command> [flags]

Commands:
  create           Deploy a new syndicate
  get              Fetch a syndicate by address
  list             List every syndicate
  depositors       List the depositors of a syndicate
  deposit          Deposit into an open syndicate
  donate           Donate into an open syndicate
  purchase         Trigger the presale purchase
  refund           Refund a depositor of an open syndicate
  withdraw-tokens  Withdraw purchased tokens after the purchase
  withdraw-bounty  Withdraw the bounty as the purchase winner
  events           List journaled events
  pause            Show or toggle the pause guard
  keygen           Generate a fresh key and print its address

Environment:
  SYNDICATE_API    daemon base URL (default http://localhost:7090)
  SYNDICATE_TOKEN  operator bearer token for mutating commands`)
}
