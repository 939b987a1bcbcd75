package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelfinder/channelfinder-server/internal/domain"
	domainerrors "github.com/channelfinder/channelfinder-server/internal/errors"
	"github.com/channelfinder/channelfinder-server/internal/validation"
)

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	ch := domain.Channel{
		Name:  "SR:C01-MG{PS:QH1}I:Sp-SP",
		Owner: "testo",
	}

	err := v.Validate(ch)
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		entity    any
		wantField string
	}{
		{
			name:      "channel without name",
			entity:    domain.Channel{Owner: "testo"},
			wantField: "name",
		},
		{
			name:      "channel without owner",
			entity:    domain.Channel{Name: "ch1"},
			wantField: "owner",
		},
		{
			name:      "tag without owner",
			entity:    domain.Tag{Name: "golden"},
			wantField: "owner",
		},
		{
			name:      "property without name",
			entity:    domain.Property{Owner: "testo"},
			wantField: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.entity)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			assert.Contains(t, domainErr.Details, tt.wantField)
		})
	}
}

func TestValidator_FieldNamesFromJSONTags(t *testing.T) {
	v := validation.New()

	err := v.Validate(domain.Channel{})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	// Details are keyed by wire names, not Go field names.
	assert.Contains(t, domainErr.Details, "name")
	assert.NotContains(t, domainErr.Details, "Name")
}
