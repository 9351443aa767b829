package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	fast := Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 8, KeyLen: 16}

	t.Run("Hash And Verify", func(t *testing.T) {
		hash, err := HashWithParams("s3cret", fast)
		require.NoError(t, err)
		assert.True(t, IsHash(hash))

		ok, err := VerifyPassword("s3cret", hash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = VerifyPassword("wrong", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Salted", func(t *testing.T) {
		a, err := HashWithParams("same", fast)
		require.NoError(t, err)
		b, err := HashWithParams("same", fast)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Invalid Hash", func(t *testing.T) {
		for _, encoded := range []string{
			"",
			"plain-text",
			"$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
			"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		} {
			assert.False(t, IsHash(encoded), encoded)
			_, err := VerifyPassword("x", encoded)
			assert.ErrorIs(t, err, ErrInvalidHash, encoded)
		}
	})

	t.Run("Version Mismatch", func(t *testing.T) {
		_, err := VerifyPassword("x", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5")
		assert.ErrorIs(t, err, ErrIncompatibleVersion)
	})
}
