package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"

	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestHelper provides fixture builders on top of a MemStore.
type TestHelper struct {
	t     *testing.T
	Store *MemStore
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t, Store: NewMemStore()}
}

// CreateTestUser stores a user with the given normalized phone.
func (h *TestHelper) CreateTestUser(phone, displayName string) *models.User {
	h.t.Helper()
	if displayName == "" {
		displayName = "Test User"
	}
	user := &models.User{
		Phone:        phone,
		DisplayName:  displayName,
		PasswordHash: "hashed_password_123",
	}
	require.NoError(h.t, h.Store.Users().Create(context.Background(), user))
	return user
}

// CreateBannedUser stores a user that may not send.
func (h *TestHelper) CreateBannedUser(phone string) *models.User {
	h.t.Helper()
	user := &models.User{Phone: phone, DisplayName: "Banned", PasswordHash: "x", IsBanned: true}
	require.NoError(h.t, h.Store.Users().Create(context.Background(), user))
	return user
}

// CreateTestClient registers a platform client owned by owner. The plain
// secret is returned for authentication tests.
func (h *TestHelper) CreateTestClient(clientID string, owner *models.User, canAutoCreate bool) (*models.PlatformClient, string) {
	h.t.Helper()
	secret := "secret-" + clientID
	sum := sha256.Sum256([]byte(secret))
	client := &models.PlatformClient{
		ClientID:           clientID,
		SecretHash:         hex.EncodeToString(sum[:]),
		Name:               "Test Client " + clientID,
		OwnerUserID:        owner.ID,
		CanAutoCreateUsers: canAutoCreate,
	}
	require.NoError(h.t, h.Store.PlatformClients().Create(context.Background(), client))
	client.Owner = *owner
	return client, secret
}

// SetupTestEnv sets up required environment variables for testing
func (h *TestHelper) SetupTestEnv() {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing-only")
	os.Setenv("DEFAULT_COUNTRY_CODE", "233")
}

// TeardownTestEnv cleans up environment variables after testing
func (h *TestHelper) TeardownTestEnv() {
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("DEFAULT_COUNTRY_CODE")
}

// GetRecordNotFoundError returns gorm.ErrRecordNotFound for mock setups.
func GetRecordNotFoundError() error {
	return gorm.ErrRecordNotFound
}

func StrPtr(s string) *string { return &s }
