package service_test

import (
	"testing"

	"github.com/witos44/UserAuthSystem/app/service"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasherRoundTrip(t *testing.T) {
	hasher := service.NewPasswordHasher(bcrypt.MinCost)

	passwords := []string{"Passw0rd!", "correct horse battery staple", "ünïcödé-pässwörd", " "}
	for _, p := range passwords {
		hash, err := hasher.Hash(p)
		if err != nil {
			t.Fatalf("hash %q failed: %v", p, err)
		}
		if !hasher.Verify(p, hash) {
			t.Fatalf("expected %q to verify against its own hash", p)
		}
		for _, other := range passwords {
			if other != p && hasher.Verify(other, hash) {
				t.Fatalf("expected %q not to verify against hash of %q", other, p)
			}
		}
	}
}

func TestPasswordHasherRejectsMalformedHash(t *testing.T) {
	hasher := service.NewPasswordHasher(bcrypt.MinCost)

	if hasher.Verify("Passw0rd!", "") {
		t.Fatalf("expected empty hash not to verify")
	}
	if hasher.Verify("Passw0rd!", "not-a-bcrypt-hash") {
		t.Fatalf("expected malformed hash not to verify")
	}
}

func TestPasswordHasherCostFallback(t *testing.T) {
	hasher := service.NewPasswordHasher(99)
	hash, err := hasher.Hash("Passw0rd!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost failed: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", cost)
	}
}
