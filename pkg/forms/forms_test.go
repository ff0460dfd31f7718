package forms_test

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/forms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	loaded, err := forms.LoadFile("testdata/forms.yaml")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	f := loaded[0]
	assert.Equal(t, "feedback", f.ID)
	require.Len(t, f.Fields, 4)
	assert.Equal(t, domain.FieldNumber, f.Fields[0].Type)
	assert.True(t, f.Fields[0].Required)
	assert.Equal(t, domain.FieldYesNo, f.Fields[1].Type, "types are case-insensitive")
	assert.Equal(t, []string{"A", "B", "3"}, f.Fields[2].Options)
}

func TestParseJSON(t *testing.T) {
	doc := `{"forms":[{"id":"x","name":"X","fields":[{"name":"e","type":"email","prompt":"Email?"}]}]}`
	loaded, err := forms.Parse([]byte(doc), ".json")
	require.NoError(t, err)
	assert.Equal(t, domain.FieldEmail, loaded[0].Fields[0].Type)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown type":    "forms:\n  - {id: x, name: X, fields: [{name: a, type: date, prompt: When?}]}",
		"unknown key":     "forms:\n  - {id: x, name: X, colour: red, fields: [{name: a, type: text, prompt: Hi}]}",
		"missing options": "forms:\n  - {id: x, name: X, fields: [{name: a, type: choice, prompt: Pick}]}",
		"duplicate field": "forms:\n  - {id: x, name: X, fields: [{name: a, type: text, prompt: A}, {name: a, type: text, prompt: B}]}",
		"no fields":       "forms:\n  - {id: x, name: X}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := forms.Parse([]byte(doc), ".yaml")
			assert.ErrorIs(t, err, domain.ErrInvalidForm)
		})
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := forms.NewRegistry("")
	require.NoError(t, err)
	f, err := reg.GetForm(forms.OnboardingID)
	require.NoError(t, err)
	assert.Equal(t, "Customer Onboarding", f.Name)
	assert.Equal(t, []string{"Phone", "Email"}, f.Fields[3].Options)

	reg, err = forms.NewRegistry("testdata/forms.yaml")
	require.NoError(t, err)
	all, err := reg.ListForms()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "feedback", all[0].ID)
	assert.Equal(t, "onboarding", all[1].ID)
}

func TestNewRegistryMissingFile(t *testing.T) {
	_, err := forms.NewRegistry("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestDraftFields(t *testing.T) {
	names := func(fields []domain.Field) []string {
		var out []string
		for _, f := range fields {
			out = append(out, f.Name)
		}
		return out
	}

	assert.Equal(t, []string{"fullName", "email"}, names(forms.DraftFields("newsletter signup")))
	assert.Equal(t, []string{"fullName", "email", "phone", "preferredContact", "address"},
		names(forms.DraftFields("Phone, contact preference and postal Address")))

	f := &domain.Form{ID: "x", Name: "X", Fields: forms.DraftFields("phone contact address")}
	assert.NoError(t, f.Validate())
}

func TestAppendFile(t *testing.T) {
	for _, ext := range []string{".yaml", ".json"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "forms"+ext)
			event := &domain.Form{ID: "event", Name: "Event", Fields: forms.DraftFields("phone")}

			require.NoError(t, forms.AppendFile(path, event))
			require.NoError(t, forms.AppendFile(path, &domain.Form{ID: "other", Name: "Other", Fields: forms.DraftFields("")}))

			list, err := forms.LoadFile(path)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "event", list[0].ID)
			assert.Equal(t, event.Fields[2].Name, list[0].Fields[2].Name)
			assert.Equal(t, domain.FieldPhone, list[0].Fields[2].Type)
			assert.True(t, list[0].Fields[2].Required)

			err = forms.AppendFile(path, event)
			assert.ErrorIs(t, err, domain.ErrFormExists)
			list, err = forms.LoadFile(path)
			require.NoError(t, err)
			assert.Len(t, list, 2)
		})
	}
}
