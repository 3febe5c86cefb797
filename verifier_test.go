package authkit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	ak "github.com/smartdash/authkit"
	"github.com/smartdash/authkit/stores"
)

// testEnv bundles the stores and engine components under test, backed by a
// temporary directory.
type testEnv struct {
	Users    *stores.FSUserStore
	Tokens   *stores.FSAuthTokenStore
	Verifier *ak.Verifier
	Sessions *ak.SessionManager
	Resolver *ak.IdentityResolver
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	users := stores.NewFSUserStore(dir)
	tokens := stores.NewFSAuthTokenStore(dir)
	return &testEnv{
		Users:    users,
		Tokens:   tokens,
		Verifier: &ak.Verifier{Users: users, Tokens: tokens},
		Sessions: &ak.SessionManager{Store: stores.NewFSSessionStore(dir)},
		Resolver: &ak.IdentityResolver{Users: users},
	}
}

// seedUser creates an account so the passwordless flow has someone to
// sign in.
func (e *testEnv) seedUser(t *testing.T, email string) *ak.User {
	t.Helper()
	user, err := e.Users.UpsertUserByEmail(context.Background(), &ak.User{
		ID:    ak.NewID(),
		Email: email,
		Name:  "Test User",
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func TestRequestCredentialUnknownUser(t *testing.T) {
	env := setupEnv(t)

	_, err := env.Verifier.RequestCredential(context.Background(), "nobody@example.com")
	if !errors.Is(err, ak.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestRequestCredentialShape(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "a@x.com")

	cred, err := env.Verifier.RequestCredential(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("RequestCredential failed: %v", err)
	}
	if len(cred.Code) != 6 {
		t.Errorf("Expected 6-digit code, got %q", cred.Code)
	}
	for _, c := range cred.Code {
		if c < '0' || c > '9' {
			t.Errorf("Code contains non-digit: %q", cred.Code)
		}
	}
	if cred.Token == "" || cred.Token == cred.Code {
		t.Errorf("Expected opaque token unrelated to code, got %q", cred.Token)
	}
}

func TestSecondCredentialInvalidatesFirst(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "a@x.com")
	ctx := context.Background()

	first, err := env.Verifier.RequestCredential(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("first RequestCredential failed: %v", err)
	}
	second, err := env.Verifier.RequestCredential(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("second RequestCredential failed: %v", err)
	}

	if _, err := env.Verifier.VerifyToken(ctx, "a@x.com", first.Token); !errors.Is(err, ak.ErrCredentialNotFound) {
		t.Errorf("Expected first token to be invalidated, got %v", err)
	}
	if _, err := env.Verifier.VerifyToken(ctx, "a@x.com", second.Token); err != nil {
		t.Errorf("Expected latest token to verify, got %v", err)
	}
}

func TestVerifyTokenSingleUse(t *testing.T) {
	env := setupEnv(t)
	user := env.seedUser(t, "a@x.com")
	ctx := context.Background()

	cred, err := env.Verifier.RequestCredential(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestCredential failed: %v", err)
	}

	grant, err := env.Verifier.VerifyToken(ctx, "a@x.com", cred.Token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if grant.UserID != user.ID {
		t.Errorf("Expected grant for user %s, got %s", user.ID, grant.UserID)
	}

	if _, err := env.Verifier.VerifyToken(ctx, "a@x.com", cred.Token); !errors.Is(err, ak.ErrCredentialNotFound) {
		t.Errorf("Expected second use to fail with ErrCredentialNotFound, got %v", err)
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "a@x.com")
	ctx := context.Background()

	cred, err := env.Verifier.RequestCredential(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestCredential failed: %v", err)
	}

	env.Verifier.Now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	if _, err := env.Verifier.VerifyToken(ctx, "a@x.com", cred.Token); !errors.Is(err, ak.ErrCredentialExpired) {
		t.Fatalf("Expected ErrCredentialExpired, got %v", err)
	}

	// The row was deleted on expiry: the correct token now reads not-found
	// even inside a fresh window.
	env.Verifier.Now = nil
	if _, err := env.Verifier.VerifyToken(ctx, "a@x.com", cred.Token); !errors.Is(err, ak.ErrCredentialNotFound) {
		t.Errorf("Expected ErrCredentialNotFound after expiry delete, got %v", err)
	}
}

func TestVerifyCodeHappyPath(t *testing.T) {
	env := setupEnv(t)
	user := env.seedUser(t, "a@x.com")
	ctx := context.Background()

	cred, err := env.Verifier.RequestCredential(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestCredential failed: %v", err)
	}

	grant, err := env.Verifier.VerifyCode(ctx, "a@x.com", cred.Code)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if grant.UserID != user.ID {
		t.Errorf("Expected grant for user %s, got %s", user.ID, grant.UserID)
	}

	// Consumption is unconditional on success.
	if _, err := env.Verifier.VerifyCode(ctx, "a@x.com", cred.Code); !errors.Is(err, ak.ErrCredentialNotFound) {
		t.Errorf("Expected reuse to fail with ErrCredentialNotFound, got %v", err)
	}
}

func TestVerifyCodeWrongGuessIncrementsAttempts(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "a@x.com")
	ctx := context.Background()

	cred, err := env.Verifier.RequestCredential(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestCredential failed: %v", err)
	}
	wrong := "000000"
	if wrong == cred.Code {
		wrong = "000001"
	}

	for i := 1; i <= 5; i++ {
		if _, err := env.Verifier.VerifyCode(ctx, "a@x.com", wrong); !errors.Is(err, ak.ErrInvalidCode) {
			t.Fatalf("guess %d: expected ErrInvalidCode, got %v", i, err)
		}
		row, err := env.Tokens.GetAuthTokenByEmail(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("guess %d: credential row should survive, got %v", i, err)
		}
		if row.Attempts != i {
			t.Errorf("guess %d: expected attempts=%d, got %d", i, i, row.Attempts)
		}
	}

	// Sixth call hits the ceiling and destroys the credential, no matter
	// what code it carries.
	if _, err := env.Verifier.VerifyCode(ctx, "a@x.com", cred.Code); !errors.Is(err, ak.ErrAttemptsExhausted) {
		t.Fatalf("Expected ErrAttemptsExhausted on sixth attempt, got %v", err)
	}
	if _, err := env.Tokens.GetAuthTokenByEmail(ctx, "a@x.com"); !errors.Is(err, ak.ErrNotFound) {
		t.Errorf("Expected credential row deleted after exhaustion, got %v", err)
	}

	// Even the correct code cannot revive it.
	if _, err := env.Verifier.VerifyCode(ctx, "a@x.com", cred.Code); !errors.Is(err, ak.ErrCredentialNotFound) {
		t.Errorf("Expected ErrCredentialNotFound after exhaustion, got %v", err)
	}
}

func TestVerifyCodeExpired(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "a@x.com")
	ctx := context.Background()

	cred, err := env.Verifier.RequestCredential(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestCredential failed: %v", err)
	}

	env.Verifier.Now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	if _, err := env.Verifier.VerifyCode(ctx, "a@x.com", cred.Code); !errors.Is(err, ak.ErrCredentialExpired) {
		t.Fatalf("Expected ErrCredentialExpired, got %v", err)
	}
	if _, err := env.Tokens.GetAuthTokenByEmail(ctx, "a@x.com"); !errors.Is(err, ak.ErrNotFound) {
		t.Errorf("Expected credential row deleted on expiry, got %v", err)
	}
}

func TestVerifyCodeNoCredential(t *testing.T) {
	env := setupEnv(t)
	env.seedUser(t, "a@x.com")

	if _, err := env.Verifier.VerifyCode(context.Background(), "a@x.com", "123456"); !errors.Is(err, ak.ErrCredentialNotFound) {
		t.Errorf("Expected ErrCredentialNotFound, got %v", err)
	}
}
