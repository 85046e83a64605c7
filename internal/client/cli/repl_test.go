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

	calls     []string
	profileID string
	loginErr  error
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(ctx context.Context) error {
	f.calls = append(f.calls, "register")
	return nil
}
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}
func (f *fakeExec) WhoAmI(ctx context.Context) error { f.calls = append(f.calls, "whoami"); return nil }
func (f *fakeExec) Profile(ctx context.Context, id string) error {
	f.calls = append(f.calls, "profile")
	f.profileID = id
	return nil
}
func (f *fakeExec) UpdateProfile(ctx context.Context) error {
	f.calls = append(f.calls, "update")
	return nil
}
func (f *fakeExec) Picture(ctx context.Context) error {
	f.calls = append(f.calls, "picture")
	return nil
}
func (f *fakeExec) Verify(ctx context.Context) error { f.calls = append(f.calls, "verify"); return nil }
func (f *fakeExec) DeleteAccount(ctx context.Context) error {
	f.calls = append(f.calls, "delete")
	return nil
}

func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func TestRunREPL_Commands(t *testing.T) {
	capturePrint(t)

	input := strings.NewReader(strings.Join([]string{
		"",
		"help",
		"login",
		"whoami",
		"profile abc",
		"update",
		"picture",
		"verify",
		"delete",
		"logout",
		"register",
		"exit",
		"login",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(input))

	assert.Equal(t, []string{"login", "whoami", "profile", "update", "picture", "verify", "delete", "logout", "register"}, exec.calls)
	assert.Equal(t, "abc", exec.profileID)
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := capturePrint(t)

	input := strings.NewReader("login\nfoobar\nprofile\n")
	exec := &fakeExec{loginErr: errors.New("bad credentials")}
	runREPL(context.Background(), exec, func() string { return "guest" }, bufio.NewScanner(input))

	assert.Equal(t, []string{"login", "profile"}, exec.calls)
	assert.Equal(t, "", exec.profileID)
	assert.Contains(t, *out, "Error: bad credentials")
	assert.Contains(t, *out, "Unknown command: foobar")
}

func TestRunREPL_HelpDependsOnSession(t *testing.T) {
	out := capturePrint(t)

	runREPL(context.Background(), &fakeExec{loggedIn: true}, func() string { return "x" }, bufio.NewScanner(strings.NewReader("help\n")))
	joined := strings.Join(*out, "\n")
	assert.Contains(t, joined, "logout")
	assert.NotContains(t, joined, "register")
}
