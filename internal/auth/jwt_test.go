package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	u := UserProfile{ID: "u-1", Email: "a@b.edu", Role: RoleDoctor}
	pair, err := Issue(u, "geoattend", "test-key", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "test-key", "geoattend")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "u-1" || claims.Role != RoleDoctor || claims.Email != "a@b.edu" {
		t.Errorf("claims round-trip mismatch: %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, _ := Issue(UserProfile{ID: "u-1", Role: RoleStudent}, "geoattend", "key-a", time.Minute, time.Hour)
	if _, err := Parse(pair.AccessToken, "key-b", "geoattend"); err == nil {
		t.Error("token signed with another key accepted")
	}
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	pair, _ := Issue(UserProfile{ID: "u-1", Role: RoleStudent}, "someone-else", "key", time.Minute, time.Hour)
	if _, err := Parse(pair.AccessToken, "key", "geoattend"); err == nil {
		t.Error("token from foreign issuer accepted")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	pair, _ := Issue(UserProfile{ID: "u-1", Role: RoleStudent}, "geoattend", "key", -time.Minute, time.Hour)
	if _, err := Parse(pair.AccessToken, "key", "geoattend"); err == nil {
		t.Error("expired token accepted")
	}
}
