package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fallcrate/milestone-web/internal/database"
	"github.com/fallcrate/milestone-web/internal/models"
)

func setupUserService(t *testing.T) *UserService {
	t.Helper()
	db, err := database.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserService(db)
}

func TestCreateAndAuthenticateUser(t *testing.T) {
	service := setupUserService(t)

	user, err := service.CreateUser(&models.CreateUserRequest{
		Username:    "squirrel",
		Password:    "acorns-forever",
		DisplayName: "Squirrel",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.OwnerID, "every account gets its own owner id")
	assert.NotZero(t, user.ID)

	authed, err := service.AuthenticateUser(&models.LoginRequest{
		Username: "squirrel",
		Password: "acorns-forever",
	})
	require.NoError(t, err)
	assert.Equal(t, user.OwnerID, authed.OwnerID)

	_, err = service.AuthenticateUser(&models.LoginRequest{
		Username: "squirrel",
		Password: "wrong",
	})
	assert.Error(t, err)
}

func TestDuplicateUsernameRejected(t *testing.T) {
	service := setupUserService(t)

	req := &models.CreateUserRequest{
		Username:    "squirrel",
		Password:    "acorns-forever",
		DisplayName: "Squirrel",
	}
	_, err := service.CreateUser(req)
	require.NoError(t, err)

	_, err = service.CreateUser(req)
	assert.ErrorContains(t, err, "username already exists")
}
