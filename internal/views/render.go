package views

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func (s Static) Render(w io.Writer) error {
	if s.Title != "" {
		if _, err := fmt.Fprintf(w, "== %s ==\n", s.Title); err != nil {
			return err
		}
	}
	for _, l := range s.Lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func (p Profile) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Name:  %s\nEmail: %s\nRole:  %s\n", p.Name, p.Email, p.Role)
	return err
}

func (l AccountList) Render(w io.Writer) error {
	if len(l.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No accounts.")
		return err
	}
	return table(w, "ID\tNAME\tEMAIL\tROLE\tVERIFIED\t", func(tw *tabwriter.Writer) {
		for _, r := range l.Rows {
			email := r.Email
			if r.IsSelf {
				email += " (you)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", r.ID, r.Name, email, r.Role, yesNo(r.Verified))
		}
	})
}

func (l RequestList) Render(w io.Writer) error {
	if len(l.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No requests yet.")
		return err
	}
	return table(w, "DATE\tTYPE\tITEMS\tSTATUS\t", func(tw *tabwriter.Writer) {
		for _, r := range l.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Date, r.Type, r.Items, r.Status)
		}
	})
}

func (l DepartmentList) Render(w io.Writer) error {
	return table(w, "NAME\tDESCRIPTION\t", func(tw *tabwriter.Writer) {
		for _, d := range l.Rows {
			fmt.Fprintf(tw, "%s\t%s\t\n", d.Name, d.Description)
		}
	})
}

func (l EmployeeList) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d employee record(s).\n", l.Count)
	return err
}

func (n Nav) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "[%s] %s\n", n.Status(), strings.Join(n.Links(), " | "))
	return err
}
