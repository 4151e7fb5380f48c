package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
	"github.com/ariel-frischer/orchestra/internal/locker"
)

func newLocksCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "locks",
		Short: "List the live lock claims",
		Long: `List the lock claims in the lock directory, oldest first.

A claim is either declared (waiting to commit) or locked (held by a
running orchestration). Claims whose process no longer runs are removed.`,
		GroupID: GroupExecution,
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			claims, err := locker.New(opts.cfg.LockDir).Claims(cmd.Context())
			if err != nil {
				return clierrors.WrapWithMessage(err, clierrors.Runtime, "reading lock claims")
			}
			printClaims(cmd.OutOrStdout(), claims)
			return nil
		},
	}
}

func printClaims(w io.Writer, claims []*locker.Claim) {
	if len(claims) == 0 {
		fmt.Fprintln(w, "No lock claims.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-8s  %8s  %7s  %-19s  %s\n", "CLAIM", "STATE", "PRIORITY", "PID", "DECLARED", "APPLICANT / RESOURCES")
	for _, c := range claims {
		fmt.Fprintf(w, "%-36s  %-8s  %8d  %7d  %-19s  %s [%s]\n",
			c.ID, c.State, c.Priority, c.PID,
			c.DeclaredAt.Local().Format(time.DateTime),
			c.Applicant, strings.Join(c.Resources, ", "))
	}
}
