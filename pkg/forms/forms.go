// Package forms loads form definitions from YAML or JSON files and provides the
// built-in onboarding form.
package forms

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/aretw0/formbot/pkg/adapters/memory"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/dsl"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// OnboardingID is the id of the built-in form.
const OnboardingID = "onboarding"

// Onboarding returns the built-in customer onboarding form.
func Onboarding() *domain.Form {
	return dsl.NewForm(OnboardingID).
		Name("Customer Onboarding").
		Ask("fullName", "What's your full name?").
		Email("email", "What's your email address?").
		Phone("phone", "What's your phone number with country code?").
		Choice("preferredContact", "Do you prefer to be contacted by phone or email?", "Phone", "Email").
		MustBuild()
}

// File represents the structure of a forms file.
type File struct {
	Forms []*domain.Form `mapstructure:"forms"`
}

// Parse decodes a forms document. ext selects JSON (".json") or YAML (anything else).
// Unknown keys and unknown field types are rejected, and every form is validated.
func Parse(data []byte, ext string) ([]*domain.Form, error) {
	var raw map[string]any
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse forms json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse forms yaml: %w", err)
		}
	}

	var file File
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &file,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       fieldTypeHook,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidForm, err)
	}

	for _, f := range file.Forms {
		if f == nil {
			return nil, fmt.Errorf("%w: empty form entry", domain.ErrInvalidForm)
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Forms, nil
}

var fieldTypeType = reflect.TypeOf(domain.FieldType(""))

func fieldTypeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != fieldTypeType || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.ParseFieldType(data.(string))
}

// Marshal encodes forms in the layout Parse reads. ext selects JSON (".json") or YAML.
func Marshal(forms []*domain.Form, ext string) ([]byte, error) {
	doc := map[string][]*domain.Form{"forms": forms}
	if strings.EqualFold(ext, ".json") {
		return json.MarshalIndent(doc, "", "  ")
	}
	return yaml.Marshal(doc)
}

// AppendFile adds f to the forms file at path, creating the file when it does not exist.
// The combined list is checked the way NewRegistry would load it, so a taken id fails
// with domain.ErrFormExists and leaves the file untouched.
func AppendFile(path string, f *domain.Form) error {
	var list []*domain.Form
	if _, err := os.Stat(path); err == nil {
		if list, err = LoadFile(path); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read forms file: %w", err)
	}
	list = append(list, f)
	if _, err := memory.NewLoader(list...); err != nil {
		return err
	}

	data, err := Marshal(list, filepath.Ext(path))
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write forms file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write forms file: %w", err)
	}
	return nil
}

// LoadFile reads and parses a forms file.
func LoadFile(path string) ([]*domain.Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read forms file: %w", err)
	}
	forms, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return forms, nil
}

// NewRegistry builds a loader from the built-in form and, when path is set, the forms in it.
// A file form with the built-in id replaces the built-in one.
func NewRegistry(path string) (*memory.Loader, error) {
	var loaded []*domain.Form
	if path != "" {
		var err error
		if loaded, err = LoadFile(path); err != nil {
			return nil, err
		}
	}

	loader, err := memory.NewLoader(loaded...)
	if err != nil {
		return nil, err
	}
	if _, err := loader.GetForm(OnboardingID); err != nil {
		if err := loader.Add(Onboarding()); err != nil {
			return nil, err
		}
	}
	return loader, nil
}
