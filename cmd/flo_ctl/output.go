package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/transfer"
	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/reconciliation"
)

func writeRecords(w io.Writer, records []transfer.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no transfers")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDIRECTION\tSTATUS\tAMOUNT (SOL)\tCOUNTERPARTY\tCREATED\tSIGNATURE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Direction,
			r.Status,
			transfer.FormatAmount(r.Amount),
			r.Counterparty.Address,
			r.Timestamps.Created.UTC().Format(time.RFC3339),
			orDash(r.LedgerSignature),
		)
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, summary reconciliation.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, id := range summary.Succeeded {
		fmt.Fprintf(tw, "%s\tCOMPLETED\t\n", id)
	}
	for _, f := range summary.Failed {
		fmt.Fprintf(tw, "%s\tFAILED\t%v\n", f.ID, f.Err)
	}
	fmt.Fprintf(tw, "succeeded: %d, failed: %d\n", len(summary.Succeeded), len(summary.Failed))
	return tw.Flush()
}

func writeEvent(w io.Writer, e shared.TransferEvent) error {
	_, err := fmt.Fprintf(w, "%s %-20s %s %s %s SOL %s\n",
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.Type,
		e.TransferID,
		e.Status,
		transfer.FormatAmount(e.Amount),
		orDash(e.LedgerSignature),
	)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
