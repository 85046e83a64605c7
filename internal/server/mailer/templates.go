package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	SubjectVerification = "Verify your email address"
	SubjectWelcome      = "Welcome to accountkeeper"
)

type verificationData struct {
	DisplayName string
	Link        string
}

type welcomeData struct {
	Username string
}

// Verification renders the mail that carries the verification link.
func Verification(to, displayName, link string) (Message, error) {
	body, err := render("verification.html", verificationData{DisplayName: displayName, Link: link})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: SubjectVerification, HTML: body}, nil
}

// Welcome renders the mail sent once the address is verified.
func Welcome(to, username string) (Message, error) {
	body, err := render("welcome.html", welcomeData{Username: username})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: SubjectWelcome, HTML: body}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
