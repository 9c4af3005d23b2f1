/*
main.go - rolctl entry point

PURPOSE:
  Command-line client for the ROL ledger. Opens the configured store,
  recovers and seeds it on first use, and dispatches one subcommand.

STARTUP SEQUENCE:
  1. Load configuration (env vars, optional .env / config.env)
  2. Build the logger
  3. Open the store (sqlite file or memory)
  4. Bootstrap: quarantine corrupt collections, seed empty ones
  5. Run the subcommand against the signed-in principal

COMMANDS:
  signin     -email -password        start a session
  signout                            end the session
  whoami                             print the signed-in principal
  create     -item TYPE:QTY:WEIGHT   record a ROL (repeat -item)
             -client-signature FILE -laundry-signature FILE
  list       -window -unit -sector -search
  dashboard  -month YYYY-MM
  report     -number N -format pdf|xlsx -out FILE
  batch      -window -unit -sector -format pdf|xlsx -out FILE
  units | clothing-types | users
  unit-add -name | unit-rm -id
  type-add -name | type-rm -id
  user-add -name -email -password -role -unit -sector | user-rm -id

ENVIRONMENT:
  APP_ENV, LOG_LEVEL, STORE_DRIVER, STORE_PATH, REPORT_TIMEZONE,
  BCRYPT_COST, SEED_DEFAULTS. See config/config.go.

EXAMPLES:
  STORE_PATH=./data/rol.db rolctl signin -email maria@hospital.com -password user123
  rolctl create -item Shirt:2:1.5 -item "Bed Sheet:1:0.5"
  rolctl batch -window 2025-03 -format xlsx -out march.xlsx
*/
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "rolctl:", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stdout)
		return nil
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	cmd, ok := commands[args[0]]
	if !ok {
		usage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd(ctx, a, args[1:], stdout)
}
