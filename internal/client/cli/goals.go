package cli

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Goal adds a goal, or with a sub-command marks one done or deletes it:
//
//	goal Run a marathon
//	goal done <id>
//	goal delete <id>
func (a *App) Goal(ctx context.Context, args []string) error {
	if len(args) == 2 {
		switch args[0] {
		case "done":
			if _, err := a.journal.SetGoalCompleted(ctx, args[1], true); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Goal completed.")
			return nil
		case "delete", "rm":
			if err := a.journal.DeleteGoal(ctx, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Deleted.")
			return nil
		}
	}

	title := strings.Join(args, " ")
	if title == "" {
		var err error
		if title, err = getSimpleText(a.reader, "Goal", a.out); err != nil {
			return err
		}
	}
	description, err := getSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}
	target, err := getSimpleText(a.reader, "Target date YYYY-MM-DD (optional)", a.out)
	if err != nil {
		return err
	}

	g, err := a.journal.AddGoal(ctx, title, description, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added goal %s\n", g.ID)
	return nil
}

func (a *App) Goals(ctx context.Context, _ []string) error {
	goals, err := a.journal.ListGoals(ctx)
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		fmt.Fprintln(a.out, "No goals.")
		return nil
	}
	for _, g := range goals {
		done := "[ ]"
		if g.Completed {
			done = "[x]"
		}
		checkins, err := a.journal.ListCheckIns(ctx, g.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s %s %s %s  check-ins: %d", statusMark(g.SyncStatus), done, g.ID, g.Title, len(checkins))
		if g.TargetDate != "" {
			fmt.Fprintf(a.out, "  target: %s", g.TargetDate)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

// CheckIn records today's (or the given day's) progress on a goal.
func (a *App) CheckIn(ctx context.Context, args []string) error {
	goalID, err := a.arg(args, 0, "Goal id")
	if err != nil {
		return err
	}
	day := time.Now().Format(time.DateOnly)
	if len(args) > 1 {
		day = args[1]
	}
	note, err := getSimpleText(a.reader, "Note (optional)", a.out)
	if err != nil {
		return err
	}

	if _, err := a.journal.CheckIn(ctx, goalID, day, note); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Checked in for %s\n", day)
	return nil
}

// Remind adds a reminder: remind 21:30 Write the journal.
func (a *App) Remind(ctx context.Context, args []string) error {
	at, err := a.arg(args, 0, "Time HH:MM")
	if err != nil {
		return err
	}
	title := ""
	if len(args) > 1 {
		title = strings.Join(args[1:], " ")
	} else if title, err = getSimpleText(a.reader, "Reminder", a.out); err != nil {
		return err
	}
	daysText, err := getSimpleText(a.reader, "Days, e.g. mon,wed,fri (empty for every day)", a.out)
	if err != nil {
		return err
	}
	days, err := ParseWeekdays(daysText)
	if err != nil {
		return err
	}

	r, err := a.journal.AddReminder(ctx, title, at, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added reminder %s\n", r.ID)
	return nil
}

// Reminders lists reminders, or switches one: reminders on|off|delete <id>.
func (a *App) Reminders(ctx context.Context, args []string) error {
	if len(args) == 2 {
		var err error
		switch args[0] {
		case "on":
			_, err = a.journal.SetReminderEnabled(ctx, args[1], true)
		case "off":
			_, err = a.journal.SetReminderEnabled(ctx, args[1], false)
		case "delete", "rm":
			err = a.journal.DeleteReminder(ctx, args[1])
		default:
			return fmt.Errorf("usage: reminders [on|off|delete <id>]")
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Saved.")
		return nil
	}

	list, err := a.journal.ListReminders(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No reminders.")
		return nil
	}
	for _, r := range list {
		state := "on"
		if !r.Enabled {
			state = "off"
		}
		fmt.Fprintf(a.out, "%s %s %s %-3s %s (%s)\n", statusMark(r.SyncStatus), r.ID, r.TimeOfDay, state, r.Title, FormatWeekdays(r.Weekdays))
	}
	return nil
}

// Pref lists preferences, or sets one: pref theme sepia.
func (a *App) Pref(ctx context.Context, args []string) error {
	if len(args) >= 2 {
		if err := a.journal.SetPreference(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Saved.")
		return nil
	}

	prefs, err := a.journal.ListPreferences(ctx)
	if err != nil {
		return err
	}
	for _, p := range prefs {
		fmt.Fprintf(a.out, "%s %s = %s\n", statusMark(p.SyncStatus), p.Key, p.Value)
	}
	return nil
}
