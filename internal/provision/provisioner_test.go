package provision

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issuerFunc func(ctx context.Context, req *sdk.TokenRequest) (*sdk.TokenResponse, error)

func (f issuerFunc) GetToken(ctx context.Context, req *sdk.TokenRequest) (*sdk.TokenResponse, error) {
	return f(ctx, req)
}

func TestProvision(t *testing.T) {
	var seen *sdk.TokenRequest
	p := NewProvisioner(issuerFunc(func(ctx context.Context, req *sdk.TokenRequest) (*sdk.TokenResponse, error) {
		seen = req
		return &sdk.TokenResponse{AccessToken: "t1"}, nil
	}), "")

	cred, err := p.Provision(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "t1", cred.Token)
	assert.Regexp(t, regexp.MustCompile(`^room-[0-9a-f]{10}$`), cred.Room)
	assert.Regexp(t, regexp.MustCompile(`^user-[0-9a-f]{8}$`), cred.Name)

	require.NotNil(t, seen)
	assert.Equal(t, cred.Room, seen.Room)
	assert.Equal(t, cred.Name, seen.Name)
	assert.Equal(t, DefaultIdentity, seen.Identity)
}

func TestProvisionFreshNames(t *testing.T) {
	p := NewProvisioner(issuerFunc(func(ctx context.Context, req *sdk.TokenRequest) (*sdk.TokenResponse, error) {
		return &sdk.TokenResponse{Token: "t"}, nil
	}), "tester")

	first, err := p.Provision(context.Background())
	require.NoError(t, err)
	second, err := p.Provision(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Room, second.Room)
}

func TestProvisionMissingToken(t *testing.T) {
	p := NewProvisioner(issuerFunc(func(ctx context.Context, req *sdk.TokenRequest) (*sdk.TokenResponse, error) {
		return &sdk.TokenResponse{}, nil
	}), "")

	_, err := p.Provision(context.Background())

	var provErr *ProvisionError
	require.True(t, errors.As(err, &provErr))
	assert.Nil(t, provErr.Err)
	assert.Contains(t, err.Error(), "token not found")
}

func TestProvisionBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail":"LiveKit credentials missing"}`)
	}))
	defer srv.Close()

	p := NewProvisioner(sdk.NewClient(srv.URL, ""), "")
	_, err := p.Provision(context.Background())

	var provErr *ProvisionError
	require.True(t, errors.As(err, &provErr))

	var httpErr *sdk.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "LiveKit credentials missing", httpErr.Detail)
}

func TestRandomString(t *testing.T) {
	for _, n := range []int{1, 8, 10, 40} {
		assert.Len(t, randomString(n), n)
	}
}
