package client

import (
	"context"
	"errors"
)

// ErrPasswordMismatch blocks a profile submission before any request.
var ErrPasswordMismatch = errors.New("client: passwords do not match")

type ProfileForm struct {
	API      *Client
	Notifier Notifier

	Password        string
	ConfirmPassword string
}

func (f *ProfileForm) Submit(ctx context.Context) error {
	if f.Password != f.ConfirmPassword {
		failure(f.Notifier, "Passwords do not match")
		return ErrPasswordMismatch
	}

	if err := f.API.UpdatePassword(ctx, f.Password, f.ConfirmPassword); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			failure(f.Notifier, apiErr.Message)
		} else {
			failure(f.Notifier, "Failed to update password")
		}
		return err
	}
	f.Password = ""
	f.ConfirmPassword = ""
	success(f.Notifier, "Password updated successfully")
	return nil
}
