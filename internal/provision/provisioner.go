package provision

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/google/uuid"
)

const (
	DefaultIdentity = "user"

	roomSuffixLength = 10
	nameSuffixLength = 8
)

// Credential is a one-shot session credential. Room is the requested room, which the
// transport may replace once connected
type Credential struct {
	Token string `json:"-"`
	Room  string `json:"room"`
	Name  string `json:"name"`
}

// ProvisionError is returned when the backend does not hand out a usable token
type ProvisionError struct {
	Room string
	Err  error
}

func (e *ProvisionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to get token for room '%s': token not found in response", e.Room)
	}
	return fmt.Sprintf("failed to get token for room '%s': %v", e.Room, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// TokenIssuer is the backend call the provisioner depends on
type TokenIssuer interface {
	GetToken(ctx context.Context, req *sdk.TokenRequest) (*sdk.TokenResponse, error)
}

// Provisioner requests a fresh credential before every connection attempt
type Provisioner struct {
	issuer   TokenIssuer
	identity string
}

// NewProvisioner creates a provisioner. An empty identity falls back to DefaultIdentity
func NewProvisioner(issuer TokenIssuer, identity string) *Provisioner {
	if identity == "" {
		identity = DefaultIdentity
	}
	return &Provisioner{issuer: issuer, identity: identity}
}

// Provision generates a random room and participant name and exchanges them for a token
func (p *Provisioner) Provision(ctx context.Context) (*Credential, error) {
	cred := &Credential{
		Room: "room-" + randomString(roomSuffixLength),
		Name: "user-" + randomString(nameSuffixLength),
	}

	resp, err := p.issuer.GetToken(ctx, &sdk.TokenRequest{
		Room:     cred.Room,
		Name:     cred.Name,
		Identity: p.identity,
	})
	if err != nil {
		return nil, &ProvisionError{Room: cred.Room, Err: err}
	}

	cred.Token = resp.Value()
	if cred.Token == "" {
		return nil, &ProvisionError{Room: cred.Room}
	}

	log.Printf("[PROVISION]: Got token for room '%s' as '%s'", cred.Room, cred.Name)
	return cred, nil
}

// randomString returns n lowercase hex characters
func randomString(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:n]
}
