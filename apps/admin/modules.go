package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/iba-dss/hxd-api/core/registration"
)

func (cli *commandLine) modules() error {
	cat := registration.NewCatalog(cli.conf.Registration.WaivableModule)
	earlyBird := time.Now().Before(cli.conf.Registration.EarlyBirdCutoff)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEARLY\tNORMAL\tMAX TEAM\tWAIVABLE")
	for _, mod := range cat {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%v\n",
			mod.ID, mod.Name, mod.EarlyPrice, mod.NormalPrice, mod.MaxTeamSize, mod.Waivable)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nearly-bird pricing active: %v (cutoff %s)\n",
		earlyBird, cli.conf.Registration.EarlyBirdCutoff.Format(time.RFC3339))
	return nil
}
