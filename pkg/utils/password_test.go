package utils_test

import (
	"testing"

	"github.com/canopy-network/stakedrop/pkg/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHash(t *testing.T) {
	hash, err := utils.PasswordHash("secret")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("secret")))

	again, err := utils.PasswordHash(string(hash))
	require.NoError(t, err)
	require.Equal(t, hash, again)
}
