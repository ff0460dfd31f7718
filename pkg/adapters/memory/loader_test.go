package memory_test

import (
	"testing"

	"github.com/aretw0/formbot/pkg/adapters/memory"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contactForm(id string) *domain.Form {
	return &domain.Form{
		ID:   id,
		Name: "Contact",
		Fields: []domain.Field{
			{Name: "email", Type: domain.FieldEmail, Prompt: "Email?"},
		},
	}
}

func TestLoader_GetAndList(t *testing.T) {
	loader, err := memory.NewLoader(contactForm("b"), contactForm("a"))
	require.NoError(t, err)

	f, err := loader.GetForm("a")
	require.NoError(t, err)
	assert.Equal(t, "a", f.ID)

	forms, err := loader.ListForms()
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, "a", forms[0].ID, "forms are listed by id")
	assert.Equal(t, "b", forms[1].ID)
}

func TestLoader_UnknownForm(t *testing.T) {
	loader, err := memory.NewLoader(contactForm("a"))
	require.NoError(t, err)

	_, err = loader.GetForm("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownForm)
}

func TestLoader_RejectsInvalidForms(t *testing.T) {
	_, err := memory.NewLoader(contactForm("a"), contactForm("a"))
	assert.ErrorIs(t, err, domain.ErrInvalidForm, "duplicate ids")
	assert.ErrorIs(t, err, domain.ErrFormExists, "duplicate ids")

	bad := contactForm("c")
	bad.Fields = append(bad.Fields, domain.Field{Name: "pick", Type: domain.FieldChoice, Prompt: "Pick"})
	_, err = memory.NewLoader(bad)
	assert.ErrorIs(t, err, domain.ErrInvalidForm, "choice without options")
}
