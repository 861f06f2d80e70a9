package businessflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tmcarr/heimdall/models"
	testingutil "github.com/tmcarr/heimdall/testing"
	"github.com/tmcarr/heimdall/utils"
)

func TestSelectSingleDepartmentUsesPageIdentity(t *testing.T) {
	selector := NewIdentitySelector(testDirectory(testingutil.SampleDirectoryJSON()))

	m := member("+17195550001", map[string]models.Membership{
		"crestone": {Active: true},
	})
	// Stale preference from a past second membership must not win.
	m.IdentityPreference = utils.ToPtr("moffat-chat")

	id, err := selector.Select(context.Background(), m)
	assert.NoError(t, err)
	assert.NotNil(t, id)
	assert.Equal(t, "crestone-page", id.Name)
}

func TestSelectDanglingPageIdentityFailsClosed(t *testing.T) {
	var blob models.DirectoryBlob
	assert.NoError(t, json.Unmarshal(testingutil.SampleDirectoryJSON(), &blob))
	delete(blob.Identities, "crestone-page")
	data, err := json.Marshal(blob)
	assert.NoError(t, err)

	selector := NewIdentitySelector(testDirectory(data))

	m := member("+17195550001", map[string]models.Membership{
		"crestone": {Active: true},
	})

	// The department names an identity the directory no longer carries:
	// the recipient fails closed instead of sending from the default.
	id, err := selector.Select(context.Background(), m)
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestSelectMultiDepartmentHonorsPreference(t *testing.T) {
	selector := NewIdentitySelector(testDirectory(testingutil.SampleDirectoryJSON()))

	m := member("+17195550001", map[string]models.Membership{
		"crestone": {Active: true},
		"moffat":   {Active: true},
	})
	m.IdentityPreference = utils.ToPtr("moffat-chat")

	id, err := selector.Select(context.Background(), m)
	assert.NoError(t, err)
	assert.NotNil(t, id)
	assert.Equal(t, "moffat-chat", id.Name)
}

func TestSelectMultiDepartmentWithoutPreferenceFallsBack(t *testing.T) {
	selector := NewIdentitySelector(testDirectory(testingutil.SampleDirectoryJSON()))

	m := member("+17195550001", map[string]models.Membership{
		"crestone": {Active: true},
		"moffat":   {Active: true},
	})

	id, err := selector.Select(context.Background(), m)
	assert.NoError(t, err)
	assert.NotNil(t, id)
	assert.Equal(t, "district-page", id.Name)
}

func TestSelectUnknownPreferenceFallsBack(t *testing.T) {
	selector := NewIdentitySelector(testDirectory(testingutil.SampleDirectoryJSON()))

	m := member("+17195550001", map[string]models.Membership{
		"crestone": {Active: true},
		"moffat":   {Active: true},
	})
	m.IdentityPreference = utils.ToPtr("retired-identity")

	id, err := selector.Select(context.Background(), m)
	assert.NoError(t, err)
	assert.NotNil(t, id)
	assert.Equal(t, "district-page", id.Name)
}
