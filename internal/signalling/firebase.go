package signalling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codedrop/internal/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/charmbracelet/log"
	"google.golang.org/api/option"
)

// ErrCodeTaken is returned by CreateSession when the code already has a
// live session.
var ErrCodeTaken = errors.New("session code already in use")

// answerPollInterval is how often WaitForAnswer re-reads the session
// document. The realtime database also supports listeners, but polling
// keeps the client dependency surface small and honors ctx directly.
const answerPollInterval = 2 * time.Second

// FirebaseMailbox stores rendezvous sessions in a Firebase Realtime
// Database under the "sessions" ref.
type FirebaseMailbox struct {
	db  *db.Client
	ref *db.Ref
}

// session is the stored document shape.
type session struct {
	Code    string `json:"code"`
	Offer   string `json:"offer"`
	Answer  string `json:"answer"`
	Created int64  `json:"created"`
}

// NewFirebaseMailbox builds a mailbox client from config.
func NewFirebaseMailbox(ctx context.Context, cfg *config.MailboxConfig) (*FirebaseMailbox, error) {
	opt := option.WithCredentialsFile(cfg.CredentialsPath)

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	return &FirebaseMailbox{
		db:  client,
		ref: client.NewRef("sessions"),
	}, nil
}

func (f *FirebaseMailbox) CreateSession(ctx context.Context, code, offer string) error {
	sessionRef := f.ref.Child(code)

	var existing session
	if err := sessionRef.Get(ctx, &existing); err != nil {
		return fmt.Errorf("error checking session %s: %w", code, err)
	}
	if existing.Code != "" {
		return ErrCodeTaken
	}

	doc := session{
		Code:    code,
		Offer:   offer,
		Created: time.Now().Unix(),
	}
	if err := sessionRef.Set(ctx, doc); err != nil {
		return fmt.Errorf("error creating session %s: %w", code, err)
	}
	return nil
}

func (f *FirebaseMailbox) GetOffer(ctx context.Context, code string) (string, error) {
	var doc session
	if err := f.ref.Child(code).Get(ctx, &doc); err != nil {
		return "", fmt.Errorf("error fetching session %s: %w", code, err)
	}
	if doc.Code == "" || doc.Offer == "" {
		return "", fmt.Errorf("session %s not found or has no offer", code)
	}
	return doc.Offer, nil
}

func (f *FirebaseMailbox) UpdateAnswer(ctx context.Context, code, answer string) error {
	sessionRef := f.ref.Child(code)

	var doc session
	if err := sessionRef.Get(ctx, &doc); err != nil {
		return fmt.Errorf("error checking session %s: %w", code, err)
	}
	if doc.Code == "" {
		return fmt.Errorf("session %s not found", code)
	}

	if err := sessionRef.Update(ctx, map[string]any{"answer": answer}); err != nil {
		return fmt.Errorf("error updating answer for session %s: %w", code, err)
	}
	return nil
}

func (f *FirebaseMailbox) WaitForAnswer(ctx context.Context, code string) (string, error) {
	sessionRef := f.ref.Child(code)

	var initial session
	if err := sessionRef.Get(ctx, &initial); err != nil {
		return "", fmt.Errorf("error checking session %s: %w", code, err)
	}
	if initial.Code == "" {
		return "", fmt.Errorf("session %s not found", code)
	}

	for {
		var doc struct {
			Answer string `json:"answer"`
		}
		if err := sessionRef.Get(ctx, &doc); err != nil {
			log.Debugf("mailbox read failed, retrying: %v", err)
		} else if doc.Answer != "" {
			return doc.Answer, nil
		}

		select {
		case <-time.After(answerPollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (f *FirebaseMailbox) DeleteSession(ctx context.Context, code string) error {
	sessionRef := f.ref.Child(code)

	var doc session
	if err := sessionRef.Get(ctx, &doc); err != nil {
		return fmt.Errorf("error checking session %s: %w", code, err)
	}
	if doc.Code == "" {
		// Already gone, nothing to clean up.
		return nil
	}

	if err := sessionRef.Delete(ctx); err != nil {
		return fmt.Errorf("error deleting session %s: %w", code, err)
	}
	return nil
}
