package engine

import (
	"context"
	"testing"
)

func TestResolveS3CredentialsPassesThroughNonS3URIs(t *testing.T) {
	opts := map[string]string{"foo": "bar"}
	resolved, err := resolveS3Credentials(context.Background(), "mem://smoke", opts)
	if err != nil {
		t.Fatalf("resolveS3Credentials: %v", err)
	}
	if resolved["foo"] != "bar" || len(resolved) != 1 {
		t.Fatalf("expected opts unchanged for non-s3 URI, got %v", resolved)
	}
}

func TestResolveS3CredentialsPassesThroughLocalPathURIs(t *testing.T) {
	resolved, err := resolveS3Credentials(context.Background(), "/tmp/data.lance", nil)
	if err != nil {
		t.Fatalf("resolveS3Credentials: %v", err)
	}
	if resolved != nil {
		t.Fatalf("expected nil opts unchanged, got %v", resolved)
	}
}

func TestResolveS3CredentialsUsesExplicitStaticCredentials(t *testing.T) {
	opts := map[string]string{
		"access_key_id":     "AKIAEXAMPLE",
		"secret_access_key": "secretexample",
		"region":            "us-west-2",
	}
	resolved, err := resolveS3Credentials(context.Background(), "s3://bucket/dataset", opts)
	if err != nil {
		t.Fatalf("resolveS3Credentials: %v", err)
	}
	if resolved["access_key_id"] != "AKIAEXAMPLE" {
		t.Fatalf("access_key_id: got %q", resolved["access_key_id"])
	}
	if resolved["secret_access_key"] != "secretexample" {
		t.Fatalf("secret_access_key: got %q", resolved["secret_access_key"])
	}
	if resolved["region"] != "us-west-2" {
		t.Fatalf("region: got %q", resolved["region"])
	}
}
