package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/cloudsync"
	"github.com/dmitrijs2005/gophjournal/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// arg returns args[i] or prompts for it.
func (a *App) arg(args []string, i int, prompt string) (string, error) {
	if i < len(args) {
		return args[i], nil
	}
	return getSimpleText(a.reader, prompt, a.out)
}

func (a *App) credentials(args []string) (string, []byte, error) {
	userName, err := a.arg(args, 0, "Enter email")
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return userName, password, nil
}

// Register creates an account. It does not sign in.
func (a *App) Register(ctx context.Context, args []string) error {
	userName, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, userName, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Registered. Use 'login' to sign in.")
	return nil
}

// Login signs in and restores from the cloud. The local journal is kept
// whatever the restore outcome.
func (a *App) Login(ctx context.Context, args []string) error {
	if a.isLoggedIn(ctx) {
		return fmt.Errorf("already signed in as %s", a.session.Username(ctx))
	}
	userName, password, err := a.credentials(args)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.auth.Login(ctx, userName, password)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			return fmt.Errorf("server unavailable, keep writing and sign in later: %w", err)
		}
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", userName)
	a.printRestore(res)
	return nil
}

func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out. Your journal stays on this device.")
	return nil
}

func (a *App) Status(ctx context.Context, _ []string) error {
	st := a.state.Get()
	if a.isLoggedIn(ctx) {
		fmt.Fprintf(a.out, "user:      %s\n", a.session.Username(ctx))
	} else {
		fmt.Fprintln(a.out, "user:      guest (not signed in)")
	}
	fmt.Fprintf(a.out, "sync:      %s", st.Phase)
	if st.Message != "" {
		fmt.Fprintf(a.out, " (%s)", st.Message)
	}
	fmt.Fprintln(a.out)

	if last := a.session.LastPush(ctx); !last.IsZero() {
		fmt.Fprintf(a.out, "last push: %s\n", last.Local().Format(time.DateTime))
	} else {
		fmt.Fprintln(a.out, "last push: never")
	}
	return nil
}

// Sync pushes every pending change now.
func (a *App) Sync(ctx context.Context, _ []string) error {
	res := a.syncer.PushPendingChanges(ctx)
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(a.out, "Uploaded %d, deleted %d, preferences %d, failed %d\n",
		res.Uploaded, res.Deleted, res.PreferencesPushed, res.Failed)
	if res.Failed == 0 {
		if err := a.session.SetLastPush(ctx, time.Now()); err != nil {
			a.logger.Warn(ctx, "failed to record last push", "error", err)
		}
	}
	return nil
}

// Restore runs the restore decision again, e.g. after a failed sign-in
// restore.
func (a *App) Restore(ctx context.Context, _ []string) error {
	res := a.restorer.Restore(ctx)
	a.printRestore(res)
	return res.Err
}

func (a *App) printRestore(res cloudsync.RestoreResult) {
	switch res.Kind {
	case cloudsync.RestoreNoCloudData:
		fmt.Fprintln(a.out, "Nothing in the cloud yet.")
	case cloudsync.RestoreFailed:
		fmt.Fprintf(a.out, "Restore failed: %v\n", res.Err)
		return
	default:
		fmt.Fprintf(a.out, "Restore: %s\n", res.Kind)
	}
	if len(res.Counts) > 0 {
		keys := make([]string, 0, len(res.Counts))
		for k := range res.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, res.Counts[k]))
		}
		fmt.Fprintf(a.out, "  %s\n", strings.Join(parts, " "))
	}
	if res.Message != "" {
		fmt.Fprintf(a.out, "  %s\n", res.Message)
	}
}
