package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/dmitrijs2005/accountkeeper/internal/client/client"
	"github.com/dmitrijs2005/accountkeeper/internal/netx"
)

// readFile and uploadPicture are indirections used to facilitate testing.
var (
	readFile      = os.ReadFile
	uploadPicture = netx.UploadToPresignedURL
)

func (a *App) WhoAmI(ctx context.Context) error {
	sess, err := a.sessions.Current(ctx)
	if err != nil {
		return err
	}
	printlnFn("id:   ", sess.IdentityID)
	printlnFn("email:", sess.Email)
	printlnFn("role: ", sess.Role)
	return nil
}

// Profile prints the profile with the given id, or the user's own.
func (a *App) Profile(ctx context.Context, id string) error {
	p, err := a.sessions.Profile(ctx, id)
	if err != nil {
		return err
	}
	printProfile(p)
	return nil
}

// UpdateProfile asks for each mutable field; empty answers keep the
// current value.
func (a *App) UpdateProfile(ctx context.Context) error {
	var (
		upd client.ProfileUpdate
		err error
	)
	if upd.DisplayName, err = getOptionalText(a.reader, "New display name", os.Stdout); err != nil {
		return err
	}
	if upd.Location, err = getOptionalText(a.reader, "New location", os.Stdout); err != nil {
		return err
	}
	if upd.Occupation, err = getOptionalText(a.reader, "New occupation", os.Stdout); err != nil {
		return err
	}
	if upd.ProfilePicturePath, err = getOptionalText(a.reader, "Picture key from 'picture'", os.Stdout); err != nil {
		return err
	}

	p, err := a.sessions.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	printProfile(p)
	return nil
}

// Picture requests an upload URL and, when a local file is given, uploads
// it and stores the key on the profile. Without a file the URL is printed
// for a manual upload.
func (a *App) Picture(ctx context.Context) error {
	u, err := a.sessions.PictureUpload(ctx)
	if err != nil {
		return err
	}

	path, err := getOptionalText(a.reader, "Path to image file", os.Stdout)
	if err != nil {
		return err
	}
	if path == nil {
		printlnFn("Upload with HTTP PUT to:")
		printlnFn(u.UploadURL)
		printlnFn("Then run 'update' and enter this key:", u.Key)
		return nil
	}

	data, err := readFile(*path)
	if err != nil {
		return err
	}
	if err := uploadPicture(ctx, u.UploadURL, data, http.DetectContentType(data)); err != nil {
		return err
	}

	p, err := a.sessions.UpdateProfile(ctx, client.ProfileUpdate{ProfilePicturePath: &u.Key})
	if err != nil {
		return err
	}
	printlnFn("Picture uploaded")
	printProfile(p)
	return nil
}

// Verify submits the token from the verification mail. The identity id is
// taken from the session when logged in.
func (a *App) Verify(ctx context.Context) error {
	id := ""
	if !a.isLoggedIn() {
		var err error
		if id, err = getSimpleText(a.reader, "Enter user id", os.Stdout); err != nil {
			return err
		}
	}
	token, err := getSimpleText(a.reader, "Enter verification token", os.Stdout)
	if err != nil {
		return err
	}

	status, err := a.sessions.VerifyEmail(ctx, id, token)
	if err != nil {
		if errors.Is(err, client.ErrInvalidInput) {
			return errors.New("the token does not match")
		}
		return err
	}
	printlnFn("Email", strings.ReplaceAll(status, "_", " "))
	return nil
}

// DeleteAccount asks for confirmation and deletes the user's own account.
func (a *App) DeleteAccount(ctx context.Context) error {
	answer, err := getSimpleText(a.reader, "Type 'yes' to delete your account", os.Stdout)
	if err != nil {
		return err
	}
	if answer != "yes" {
		printlnFn("Cancelled")
		return nil
	}
	if err := a.sessions.DeleteAccount(ctx); err != nil {
		return err
	}
	printlnFn("Account deleted")
	return nil
}

func printProfile(p *client.Profile) {
	printlnFn("id:          ", p.ID)
	printlnFn("username:    ", p.Username)
	printlnFn("display name:", p.DisplayName)
	printlnFn("email:       ", p.Email)
	if p.Location != nil {
		printlnFn("location:    ", *p.Location)
	}
	if p.Occupation != nil {
		printlnFn("occupation:  ", *p.Occupation)
	}
	if p.ProfilePicturePath != nil {
		printlnFn("picture:     ", *p.ProfilePicturePath)
	}
}
