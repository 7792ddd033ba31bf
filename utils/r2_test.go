package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/payouts/a.json", publicURL("https://cdn.example.com/", "/payouts/a.json"))
	assert.Equal(t, "https://cdn.example.com/payouts/a.json", publicURL("https://cdn.example.com", "payouts/a.json"))
}

func TestNewR2Archive_RequiresBucket(t *testing.T) {
	_, err := NewR2Archive(context.Background(), R2Options{AccountID: "acc"})
	assert.Error(t, err)
}

func TestNewR2Archive_DefaultsCDNToBucketEndpoint(t *testing.T) {
	a, err := NewR2Archive(context.Background(), R2Options{
		AccountID:       "acc",
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "reports",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://acc.r2.cloudflarestorage.com/reports", a.cdnBaseURL)
}
