package cli

import (
	"context"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/client/services"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
)

// getSimpleText, getOptionalText and getPassword are indirections used to
// facilitate testing.
var (
	getSimpleText   = GetSimpleText
	getOptionalText = GetOptionalText
	getPassword     = GetPassword
)

// Register prompts for the account fields and creates the account. The
// returned session is stored, so the user is logged in afterwards.
func (a *App) Register(ctx context.Context) error {
	var (
		in  services.RegisterInput
		err error
	)
	if in.Username, err = getSimpleText(a.reader, "Enter username", os.Stdout); err != nil {
		return err
	}
	if in.Email, err = getSimpleText(a.reader, "Enter email", os.Stdout); err != nil {
		return err
	}
	if in.DisplayName, err = getSimpleText(a.reader, "Enter display name (empty for username)", os.Stdout); err != nil {
		return err
	}
	if in.Location, err = getOptionalText(a.reader, "Enter location", os.Stdout); err != nil {
		return err
	}
	if in.Occupation, err = getOptionalText(a.reader, "Enter occupation", os.Stdout); err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	sess, err := a.sessions.Register(ctx, in, password)
	if err != nil {
		return err
	}

	printlnFn("Registered as", sess.IdentityID, "- check your inbox for the verification mail.")
	return nil
}

// Login prompts for credentials and stores the new session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.sessions.Login(ctx, email, password); err != nil {
		return err
	}

	printlnFn("Login successful")
	return nil
}

// Logout forgets the local session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.sessions.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}
