package domain

import (
	"testing"
	"time"
)

func TestLockoutSentinels(t *testing.T) {
	now := time.Now()
	acct := &Account{LockoutEnabled: true}

	acct.LockoutEnd = LockoutEndMax
	if !acct.IsLockedOut(now) {
		t.Fatal("expected account to be locked with max lockout end")
	}

	acct.LockoutEnd = LockoutEndMin
	if acct.IsLockedOut(now) {
		t.Fatal("expected account to be unlocked with min lockout end")
	}

	acct.LockoutEnd = LockoutEndMax
	acct.LockoutEnabled = false
	if acct.IsLockedOut(now) {
		t.Fatal("disabled lockout must never report locked")
	}
	if !acct.LockedOutAt(now) {
		t.Fatal("LockedOutAt ignores the enabled flag")
	}
}

func TestRegisterFailedAccess(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := LockoutPolicy{MaxFailedAttempts: 3, Duration: 15 * time.Minute}
	acct := &Account{LockoutEnabled: true}

	for i := 0; i < 2; i++ {
		if acct.RegisterFailedAccess(policy, now) {
			t.Fatalf("attempt %d should not lock", i+1)
		}
	}
	if acct.AccessFailedCount != 2 {
		t.Fatalf("expected 2 failures, got %d", acct.AccessFailedCount)
	}

	if !acct.RegisterFailedAccess(policy, now) {
		t.Fatal("third attempt should lock")
	}
	if acct.AccessFailedCount != 0 {
		t.Fatalf("counter should reset on lock, got %d", acct.AccessFailedCount)
	}
	if !acct.IsLockedOut(now.Add(time.Minute)) {
		t.Fatal("expected lock in force")
	}
	if acct.IsLockedOut(now.Add(16 * time.Minute)) {
		t.Fatal("expected lock to expire")
	}
}

func TestRegisterFailedAccessLockoutDisabled(t *testing.T) {
	acct := &Account{}
	if acct.RegisterFailedAccess(LockoutPolicy{MaxFailedAttempts: 1, Duration: time.Hour}, time.Now()) {
		t.Fatal("disabled lockout must not lock")
	}
	if acct.AccessFailedCount != 0 {
		t.Fatalf("disabled lockout must not count, got %d", acct.AccessFailedCount)
	}
}
