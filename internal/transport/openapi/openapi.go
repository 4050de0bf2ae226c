// Package openapi embeds the API document and validates request bodies
// against its component schemas.
package openapi

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yml
var Document []byte

type Validator struct {
	doc *openapi3.T
}

func NewValidator() (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(Document)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	if doc.Components == nil {
		return nil, errors.New("openapi document has no components")
	}
	return &Validator{doc: doc}, nil
}

// ValidateBody checks body against components.schemas[schema].
func (v *Validator) ValidateBody(schema string, body []byte) error {
	ref, ok := v.doc.Components.Schemas[schema]
	if !ok || ref == nil || ref.Value == nil {
		return internal.NewInternalError("unknown request schema", fmt.Errorf("schema %q not found", schema))
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return internal.NewValidationError("invalid request body", internal.ErrCodeInvalidBody)
	}

	if err := ref.Value.VisitJSON(data, openapi3.MultiErrors()); err != nil {
		return internal.NewValidationError("Validation failed", internal.ErrCodeValidationFailed).
			WithDetails(internal.ValidationErrors{Errors: schemaErrors(err)})
	}
	return nil
}

func schemaErrors(err error) []internal.ValidationError {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var out []internal.ValidationError
		for _, e := range multi {
			out = append(out, schemaErrors(e)...)
		}
		return out
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		field := strings.Join(schemaErr.JSONPointer(), ".")
		if field == "" {
			field = "body"
		}
		return []internal.ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("%s: %s", field, schemaErr.Reason),
			Code:    schemaErr.SchemaField,
		}}
	}

	return []internal.ValidationError{{Field: "body", Message: err.Error(), Code: string(internal.ErrCodeValidationFailed)}}
}

// Handler serves the raw document.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(Document)
	}
}
