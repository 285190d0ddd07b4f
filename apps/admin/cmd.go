package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/iba-dss/hxd-api/core"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db   *sql.DB
	conf *core.Config
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  modules                - list the module catalog with current pricing")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "modules":
		return cli.modules()
	default:
		cli.printUsage()
		return errHelp
	}
}
