package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantSet  bool
		wantNull bool
		wantLogo string
	}{
		{name: "absent", body: `{"name":"Acme"}`},
		{name: "null", body: `{"logo_url":null}`, wantSet: true, wantNull: true},
		{name: "value", body: `{"logo_url":"https://acme.test/logo.png"}`, wantSet: true, wantLogo: "https://acme.test/logo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p OrganizationPatch
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))

			assert.Equal(t, tt.wantSet, p.LogoURL.Set)
			assert.Equal(t, tt.wantNull, p.LogoURL.Null)
			assert.Equal(t, tt.wantLogo, p.LogoURL.Value)
		})
	}
}

func TestOptional_UnmarshalJSON_TypeMismatch(t *testing.T) {
	var p ServicePatch
	err := json.Unmarshal([]byte(`{"is_public":"yes"}`), &p)
	require.Error(t, err)
}

func TestOrganization_Apply_NullableLogo(t *testing.T) {
	logo := "https://acme.test/logo.png"
	org := &Organization{Name: "Acme", Slug: "acme", LogoURL: &logo}

	require.NoError(t, org.Apply(OrganizationPatch{LogoURL: Null[string]()}, org.UpdatedAt))
	assert.Nil(t, org.LogoURL)

	require.NoError(t, org.Apply(OrganizationPatch{LogoURL: Some("https://acme.test/new.png")}, org.UpdatedAt))
	require.NotNil(t, org.LogoURL)
	assert.Equal(t, "https://acme.test/new.png", *org.LogoURL)
	assert.Equal(t, "Acme", org.Name)
}
