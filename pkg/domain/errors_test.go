package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("lookup: %w", ErrUnknownForm), "I couldn't find that form. Please check the form name and try again."},
		{ErrNoActiveSession, "You don't have a form in progress. Start one to begin."},
		{fmt.Errorf("%w: session_1", ErrSessionAlreadyActive), "You already have a form in progress. Please finish it or cancel it first."},
		{ErrRegistrationRequired, "Please register before starting a form."},
		{fmt.Errorf("%w: timeout", ErrGenerationUnavailable), "I can't chat right now. Please try again later."},
		{fmt.Errorf("%w: disk full", ErrPersistence), "Something went wrong on our side. Please try again later."},
		{errors.New("boom"), "Something went wrong on our side. Please try again later."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}
