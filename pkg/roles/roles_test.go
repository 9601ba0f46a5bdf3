package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	assert.True(t, Admin.HasPermission(Manager))
	assert.True(t, Manager.HasPermission(Technician))
	assert.True(t, Technician.HasPermission(Technician))
	assert.False(t, Technician.HasPermission(Manager))
	assert.False(t, Manager.HasPermission(Admin))
}

func TestIsElevated(t *testing.T) {
	assert.False(t, Technician.IsElevated())
	assert.True(t, Manager.IsElevated())
	assert.True(t, Admin.IsElevated())
}

func TestIsValid(t *testing.T) {
	assert.True(t, Technician.IsValid())
	assert.False(t, Role("superuser").IsValid())
}
