package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAdmin(t *testing.T) {
	p := NewPolicyService("100, 200", "")
	assert.True(t, p.IsAdmin(100))
	assert.True(t, p.IsAdmin(200))
	assert.False(t, p.IsAdmin(300))
}

func TestIsAllowedOpenByDefault(t *testing.T) {
	p := NewPolicyService("", "")
	assert.True(t, p.IsAllowed(999))
}

func TestIsAllowedWithList(t *testing.T) {
	p := NewPolicyService("100", "200,300")
	assert.True(t, p.IsAllowed(200))
	assert.True(t, p.IsAllowed(300))
	assert.True(t, p.IsAllowed(100), "admins are always allowed")
	assert.False(t, p.IsAllowed(400))
}

func TestCanManageDocuments(t *testing.T) {
	open := NewPolicyService("", "")
	assert.True(t, open.CanManageDocuments(1), "no admin list means everyone manages")

	locked := NewPolicyService("100", "")
	assert.True(t, locked.CanManageDocuments(100))
	assert.False(t, locked.CanManageDocuments(200))
}

func TestParseIDListIgnoresJunk(t *testing.T) {
	p := NewPolicyService("100,abc, ,200", "")
	assert.True(t, p.IsAdmin(100))
	assert.True(t, p.IsAdmin(200))
	assert.Len(t, p.AdminUserIDs, 2)
}
