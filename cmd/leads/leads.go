package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/models"
)

func addCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add field=value...",
		Short: "Add a lead",
		Long: `Add a lead from field=value pairs. Field names are the stored keys or
their short forms, e.g.

  leads add first_name=Jane last_name=Doe phone=555-1212 "city, state, zip=Springfield, IL, 62701"

New leads always start with status "In System".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args)
			if err != nil {
				return err
			}
			lead, index, err := a.leads.Create(values)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added lead #%d %s (%s)\n", index, displayName(&lead), lead.ID)
			return nil
		},
	}
}

// parseAssignments turns field=value arguments into create values. Later
// assignments to the same field win.
func parseAssignments(args []string) (map[models.Field]string, error) {
	values := make(map[models.Field]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "expected field=value, got %q", arg)
		}
		field, err := models.ParseField(key)
		if err != nil {
			return nil, err
		}
		values[field] = value
	}
	return values, nil
}

func listCommand(a *app) *cobra.Command {
	var (
		asJSON bool
		status string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List leads in order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var want models.LeadStatus
			if status != "" {
				s, err := models.ParseLeadStatus(status)
				if err != nil {
					return err
				}
				want = s
			}

			type row struct {
				Index int `json:"index"`
				models.Lead
			}
			var rows []row
			for i, l := range a.leads.List() {
				if want == "" || l.Status == want {
					rows = append(rows, row{i, l})
				}
			}

			if asJSON {
				if rows == nil {
					rows = []row{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tNAME\tPHONE\tEMAIL\tJOB TYPE\tSTATUS")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Index, displayName(&r.Lead), r.Phone, r.Email, r.JobType, r.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print leads as JSON")
	cmd.Flags().StringVar(&status, "status", "", "only list leads with this status")
	return cmd
}

func showCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <index|id>",
		Short: "Show every field of one lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lead, index, err := a.resolve(args[0])
			if err != nil {
				return err
			}
			printLead(cmd.OutOrStdout(), &lead, index)
			return nil
		},
	}
}

func printLead(w io.Writer, lead *models.Lead, index int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\t%d\n", index)
	fmt.Fprintf(tw, "ID\t%s\n", lead.ID)
	for _, f := range models.Fields {
		fmt.Fprintf(tw, "%s\t%s\n", f, strings.ReplaceAll(lead.Get(f), "\n", " / "))
	}
	tw.Flush()
}

func setCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <index|id> <field> <value>",
		Short: "Change one field of a lead",
		Long: `Change one field of a lead. Job Type and Lead Status only accept their
known values; every other field takes any text, including an empty string.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := models.ParseField(args[1])
			if err != nil {
				return err
			}
			_, index, err := a.resolve(args[0])
			if err != nil {
				return err
			}
			lead, err := a.leads.UpdateAt(index, field, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated lead #%d %s: %s = %q\n", index, displayName(&lead), field, lead.Get(field))
			return nil
		},
	}
}

func deleteCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <index|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a lead",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lead, index, err := a.resolve(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(cmd, fmt.Sprintf("Delete lead #%d %s?", index, displayName(&lead)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
					return nil
				}
			}
			if _, err := a.leads.DeleteAt(index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted lead #%d %s\n", index, displayName(&lead))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

// confirm asks a yes/no question on the command's streams. Anything but
// "y" or "yes" is a no.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func displayName(l *models.Lead) string {
	if name := l.Name(); name != "" {
		return name
	}
	return "(no name)"
}
