package credentials

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/folio/internal/apperr"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "users.yml"), bcrypt.MinCost)
}

func TestLoad_MissingFile(t *testing.T) {
	s := testStore(t)
	users, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRegisterThenVerify(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Register("admin", "secret"))

	ok, err := s.Verify("admin", "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify("admin", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_UnknownUser(t *testing.T) {
	s := testStore(t)
	ok, err := s.Verify("bob", "foo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoredValueIsNotPlaintext(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Register("admin", "secret"))

	users, err := s.Load()
	require.NoError(t, err)
	assert.NotEqual(t, "secret", users["admin"])
	assert.NotEmpty(t, users["admin"])

	raw, err := os.ReadFile(s.path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}

func TestRegister_Duplicate(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Register("admin", "secret"))

	err := s.Register("admin", "other")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	ok, _ := s.Verify("admin", "secret")
	assert.True(t, ok, "original password must still verify")
}

func TestRegister_Blank(t *testing.T) {
	s := testStore(t)
	assert.ErrorIs(t, s.Register("", "secret"), apperr.ErrAlreadyExists)
	assert.ErrorIs(t, s.Register("bob", "   "), apperr.ErrAlreadyExists)

	users, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRegister_PersistsAcrossInstances(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Register("admin", "secret"))

	other := NewStore(s.path, bcrypt.MinCost)
	ok, err := other.Verify("admin", "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := other.Exists("admin")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegister_LongPassword(t *testing.T) {
	s := testStore(t)
	long := strings.Repeat("p", 73)
	require.NoError(t, s.Register("admin", long))

	ok, err := s.Verify("admin", long)
	require.NoError(t, err)
	assert.True(t, ok)

	// Sharing the first 72 bytes is not enough.
	ok, err = s.Verify("admin", strings.Repeat("p", 72)+"q")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Verify("admin", strings.Repeat("p", 72))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_ExistingShortHash(t *testing.T) {
	s := testStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path, []byte("admin: "+string(hash)+"\n"), 0o600))

	ok, err := s.Verify("admin", "secret")
	require.NoError(t, err)
	assert.True(t, ok)
}
