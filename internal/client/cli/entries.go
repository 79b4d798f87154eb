package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/client/services"
)

const defaultListLimit = 20

func shortText(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func statusMark(s models.SyncStatus) string {
	if s.Pending() {
		return "*"
	}
	return " "
}

func (a *App) printEntries(list []*models.Entry) {
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No entries.")
		return
	}
	for _, e := range list {
		fmt.Fprintf(a.out, "%s %s  %s  %s\n", statusMark(e.SyncStatus), e.ID,
			e.CreatedAt.Local().Format(time.DateOnly), shortText(e.Title, 40))
	}
}

// Add creates an entry. The title may be given inline: add My day.
func (a *App) Add(ctx context.Context, args []string) error {
	var in services.NewEntry
	var err error

	if len(args) > 0 {
		in.Title = strings.Join(args, " ")
	} else if in.Title, err = getSimpleText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if in.Content, err = GetMultiline(a.reader, "Text", a.out); err != nil {
		return err
	}
	if in.ImagePath, err = getSimpleText(a.reader, "Image file (optional)", a.out); err != nil {
		return err
	}
	if in.AudioPath, err = getSimpleText(a.reader, "Audio file (optional)", a.out); err != nil {
		return err
	}

	e, err := a.journal.AddEntry(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s\n", e.ID)
	return nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := a.arg(args, 0, "Entry id")
	if err != nil {
		return err
	}
	cur, err := a.journal.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	title, err := getSimpleText(a.reader, fmt.Sprintf("Title [%s]", cur.Title), a.out)
	if err != nil {
		return err
	}
	if title == "" {
		title = cur.Title
	}
	content, err := GetMultiline(a.reader, "Text (empty keeps the current text)", a.out)
	if err != nil {
		return err
	}
	if content == "" {
		content = cur.Content
	}

	if _, err := a.journal.EditEntry(ctx, id, title, content); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Saved.")
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := a.arg(args, 0, "Entry id")
	if err != nil {
		return err
	}
	if err := a.journal.DeleteEntry(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

// List prints the newest entries; list 50 changes the limit.
func (a *App) List(ctx context.Context, args []string) error {
	limit := defaultListLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("usage: list [count]")
		}
		limit = n
	}
	list, err := a.journal.ListEntries(ctx, limit)
	if err != nil {
		return err
	}
	a.printEntries(list)
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := a.arg(args, 0, "Entry id")
	if err != nil {
		return err
	}
	e, err := a.journal.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\n%s\n\n%s\n", e.Title, e.CreatedAt.Local().Format(time.DateTime), e.Content)
	if e.ImageKey != "" {
		fmt.Fprintf(a.out, "image: %s\n", a.journal.MediaPath(e.ImageKey))
	}
	if e.AudioKey != "" {
		fmt.Fprintf(a.out, "audio: %s\n", a.journal.MediaPath(e.AudioKey))
	}
	fmt.Fprintf(a.out, "sync: %s\n", e.SyncStatus)
	return nil
}

func (a *App) Search(ctx context.Context, args []string) error {
	q := strings.Join(args, " ")
	if q == "" {
		var err error
		if q, err = getSimpleText(a.reader, "Search for", a.out); err != nil {
			return err
		}
	}
	list, err := a.journal.SearchEntries(ctx, q, defaultListLimit)
	if err != nil {
		return err
	}
	a.printEntries(list)
	return nil
}
