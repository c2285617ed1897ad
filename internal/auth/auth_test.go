package auth

import (
	"testing"
	"time"

	"github.com/mnemos/mnemos/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.Issue("usr_1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	userID, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "usr_1" {
		t.Errorf("userID = %q, want usr_1", userID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute)

	token, err := m.Issue("usr_1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := m.Verify(token); err != domain.ErrTokenInvalid {
		t.Errorf("Verify = %v, want ErrTokenInvalid", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, _ := issuer.Issue("usr_1")
	if _, err := verifier.Verify(token); err != domain.ErrTokenInvalid {
		t.Errorf("Verify = %v, want ErrTokenInvalid", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	if _, err := m.Verify("not.a.token"); err != domain.ErrTokenInvalid {
		t.Errorf("Verify = %v, want ErrTokenInvalid", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter2hunter2" {
		t.Fatal("password stored in plaintext")
	}

	if err := CheckPassword(hash, "hunter2hunter2"); err != nil {
		t.Errorf("CheckPassword rejected correct password: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err != domain.ErrInvalidCredentials {
		t.Errorf("CheckPassword = %v, want ErrInvalidCredentials", err)
	}
}
