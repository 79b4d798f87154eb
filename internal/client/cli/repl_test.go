package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	failOn   string

	calls []string
	args  map[string][]string
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = make(map[string][]string)
	}
	f.args[name] = args
	if name == f.failOn {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeExec) isLoggedIn(context.Context) bool { return f.loggedIn }
func (f *fakeExec) Register(_ context.Context, a []string) error {
	return f.record("register", a)
}
func (f *fakeExec) Login(_ context.Context, a []string) error {
	f.loggedIn = true
	return f.record("login", a)
}
func (f *fakeExec) Logout(_ context.Context, a []string) error {
	f.loggedIn = false
	return f.record("logout", a)
}
func (f *fakeExec) Status(_ context.Context, a []string) error    { return f.record("status", a) }
func (f *fakeExec) Add(_ context.Context, a []string) error       { return f.record("add", a) }
func (f *fakeExec) Edit(_ context.Context, a []string) error      { return f.record("edit", a) }
func (f *fakeExec) Delete(_ context.Context, a []string) error    { return f.record("delete", a) }
func (f *fakeExec) List(_ context.Context, a []string) error      { return f.record("list", a) }
func (f *fakeExec) Show(_ context.Context, a []string) error      { return f.record("show", a) }
func (f *fakeExec) Search(_ context.Context, a []string) error    { return f.record("search", a) }
func (f *fakeExec) Goal(_ context.Context, a []string) error      { return f.record("goal", a) }
func (f *fakeExec) Goals(_ context.Context, a []string) error     { return f.record("goals", a) }
func (f *fakeExec) CheckIn(_ context.Context, a []string) error   { return f.record("checkin", a) }
func (f *fakeExec) Remind(_ context.Context, a []string) error    { return f.record("remind", a) }
func (f *fakeExec) Reminders(_ context.Context, a []string) error { return f.record("reminders", a) }
func (f *fakeExec) Pref(_ context.Context, a []string) error      { return f.record("pref", a) }
func (f *fakeExec) Sync(_ context.Context, a []string) error      { return f.record("sync", a) }
func (f *fakeExec) Restore(_ context.Context, a []string) error   { return f.record("restore", a) }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func runLines(exec *fakeExec, lines ...string) {
	r := bufio.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "status" }, r)
}

func TestRunREPL_DispatchesWithArgs(t *testing.T) {
	captureOutput(t)
	exec := &fakeExec{}

	runLines(exec,
		"help",
		"add Morning pages",
		"",
		"l 5",
		"show e1",
		"search walk park",
		"goal Run",
		"checkin g1 2026-03-01",
		"remind 21:30 Write",
		"pref theme sepia",
		"login",
		"sync",
		"restore",
		"rm e1",
		"exit",
		"status",
	)

	assert.Equal(t, []string{
		"add", "list", "show", "search", "goal", "checkin", "remind", "pref",
		"login", "sync", "restore", "delete",
	}, exec.calls)
	assert.Equal(t, []string{"Morning", "pages"}, exec.args["add"])
	assert.Equal(t, []string{"walk", "park"}, exec.args["search"])
	assert.Empty(t, exec.args["sync"])
}

func TestRunREPL_HelpDependsOnSession(t *testing.T) {
	out := captureOutput(t)

	runLines(&fakeExec{}, "help")
	assert.Contains(t, *out, helpGuest)

	*out = nil
	runLines(&fakeExec{loggedIn: true}, "help")
	assert.Contains(t, *out, helpSignedIn)
}

func TestRunREPL_ErrorsDoNotStopTheLoop(t *testing.T) {
	out := captureOutput(t)
	exec := &fakeExec{failOn: "sync"}

	runLines(exec, "sync", "foobar", "goals", "quit")

	assert.Equal(t, []string{"sync", "goals"}, exec.calls)
	assert.Contains(t, *out, "error: boom")
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Contains(t, *out, "Bye!")
}
