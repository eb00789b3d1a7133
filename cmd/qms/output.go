package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/domain/document"
	cli "github.com/urfave/cli/v3"
)

func out(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

func useJSON(cmd *cli.Command) bool {
	return cmd.Bool("json")
}

func writeJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(out(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMessage(cmd *cli.Command, v any, text string) error {
	if useJSON(cmd) {
		return writeJSON(cmd, v)
	}
	_, err := fmt.Fprintln(out(cmd), text)
	return err
}

func printDocument(cmd *cli.Command, doc *document.Document) error {
	if useJSON(cmd) {
		return writeJSON(cmd, doc)
	}
	w := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Document:\t%s\n", doc.ID)
	fmt.Fprintf(w, "Title:\t%s\n", doc.Title)
	fmt.Fprintf(w, "Type:\t%s\n", doc.Type)
	fmt.Fprintf(w, "Version:\t%s\n", doc.Version)
	fmt.Fprintf(w, "Status:\t%s\n", doc.Status)
	if doc.Executable {
		fmt.Fprintf(w, "Phase:\t%s\n", doc.ExecutionPhase)
	}
	if doc.ResponsibleUser != "" {
		fmt.Fprintf(w, "Responsible:\t%s\n", doc.ResponsibleUser)
	}
	if doc.CheckedOut {
		fmt.Fprintf(w, "Checked out:\tyes\n")
	}
	if pending := doc.Pending(); len(pending) > 0 {
		fmt.Fprintf(w, "Pending:\t%s\n", strings.Join(pending, ", "))
	}
	if doc.ParentID != nil {
		fmt.Fprintf(w, "Parent:\t%s\n", *doc.ParentID)
	}
	if doc.EffectiveVersion != "" {
		fmt.Fprintf(w, "Effective version:\t%s\n", doc.EffectiveVersion)
	}
	return w.Flush()
}

func printDocuments(cmd *cli.Command, docs []document.Document) error {
	if useJSON(cmd) {
		if docs == nil {
			docs = []document.Document{}
		}
		return writeJSON(cmd, docs)
	}
	if len(docs) == 0 {
		_, err := fmt.Fprintln(out(cmd), "No documents.")
		return err
	}
	w := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tSTATUS\tOWNER\tTITLE")
	for _, d := range docs {
		owner := d.ResponsibleUser
		if owner == "" {
			owner = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Version, d.Status, owner, d.Title)
	}
	return w.Flush()
}

func printEvents(cmd *cli.Command, events []audit.Event) error {
	if useJSON(cmd) {
		if events == nil {
			events = []audit.Event{}
		}
		return writeJSON(cmd, events)
	}
	if len(events) == 0 {
		_, err := fmt.Fprintln(out(cmd), "No events.")
		return err
	}
	w := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tUSER\tVERSION\tDETAIL")
	for _, e := range events {
		detail := e.Comment
		if e.FromStatus != "" {
			detail = strings.TrimSpace(fmt.Sprintf("%s -> %s %s", e.FromStatus, e.ToStatus, detail))
		}
		if e.Outcome != "" {
			detail = strings.TrimSpace(e.Outcome + " " + detail)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, e.Actor, e.Version, detail)
	}
	return w.Flush()
}
