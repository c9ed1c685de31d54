// Package gsa runs the client side of Apple's GSA flavoured SRP handshake for a
// single login attempt.
package gsa

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"searchads-client/internal/srp"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrNotInitialized      = errors.New("gsa: authenticator not initialized")
	ErrAlreadyInitialized  = errors.New("gsa: authenticator already initialized")
	ErrUnsupportedProtocol = errors.New("gsa: unsupported protocol")
	ErrInvalidChallenge    = errors.New("gsa: invalid challenge")
	ErrProofConsumed       = errors.New("gsa: proof already generated for this attempt")
)

const (
	ProtocolS2K   = "s2k"
	ProtocolS2KFO = "s2k_fo"
)

// SupportedProtocols is the list sent to the server at init time.
var SupportedProtocols = []string{ProtocolS2K, ProtocolS2KFO}

const derivedKeyLen = 32

// ClientInit is the body posted to the signin/init endpoint.
type ClientInit struct {
	A           string   `json:"a"`
	Protocols   []string `json:"protocols"`
	AccountName string   `json:"accountName"`
}

// Challenge is the server's answer to ClientInit.
type Challenge struct {
	Protocol  string `json:"protocol"`
	Salt      string `json:"salt"`
	B         string `json:"b"`
	Iteration int    `json:"iteration"`
	C         string `json:"c"`
}

// Proof is the body posted to the signin/complete endpoint.
type Proof struct {
	AccountName string `json:"accountName"`
	M1          string `json:"m1"`
	M2          string `json:"m2"`
	C           string `json:"c"`
}

type authState int

const (
	stateUninitialized authState = iota
	stateInitialized
	stateProofReady
)

// Authenticator holds the SRP client for one login attempt.
type Authenticator struct {
	username string
	state    authState
	client   *srp.Client

	// newClient is swapped out in tests for a fixed private value.
	newClient func(username []byte) (*srp.Client, error)
}

func NewAuthenticator(username string) *Authenticator {
	return &Authenticator{
		username:  username,
		newClient: srp.NewClient,
	}
}

// Init generates the ephemeral key pair.
func (a *Authenticator) Init() (ClientInit, error) {
	if a.state != stateUninitialized {
		return ClientInit{}, ErrAlreadyInitialized
	}
	client, err := a.newClient([]byte(a.username))
	if err != nil {
		return ClientInit{}, fmt.Errorf("gsa: generate ephemeral key: %w", err)
	}
	a.client = client
	a.state = stateInitialized

	protocols := make([]string, len(SupportedProtocols))
	copy(protocols, SupportedProtocols)
	return ClientInit{
		A:           base64.StdEncoding.EncodeToString(client.A()),
		Protocols:   protocols,
		AccountName: a.username,
	}, nil
}

// DerivePassword stretches the password into the key fed to SRP.
func DerivePassword(protocol, password string, salt []byte, iterations int) ([]byte, error) {
	digest := sha256.Sum256([]byte(password))
	passHash := digest[:]
	switch protocol {
	case ProtocolS2K:
	case ProtocolS2KFO:
		passHash = []byte(hex.EncodeToString(passHash))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, protocol)
	}
	return pbkdf2.Key(passHash, salt, iterations, derivedKeyLen, sha256.New), nil
}

// Complete turns the server challenge into the client proof.
func (a *Authenticator) Complete(password string, challenge Challenge) (Proof, error) {
	switch a.state {
	case stateUninitialized:
		return Proof{}, ErrNotInitialized
	case stateProofReady:
		return Proof{}, ErrProofConsumed
	}
	if challenge.Protocol != ProtocolS2K && challenge.Protocol != ProtocolS2KFO {
		return Proof{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, challenge.Protocol)
	}
	if challenge.Iteration <= 0 {
		return Proof{}, fmt.Errorf("%w: iteration count %d", ErrInvalidChallenge, challenge.Iteration)
	}
	salt, err := base64.StdEncoding.DecodeString(challenge.Salt)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: salt: %w", ErrInvalidChallenge, err)
	}
	serverPublic, err := base64.StdEncoding.DecodeString(challenge.B)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: b: %w", ErrInvalidChallenge, err)
	}

	key, err := DerivePassword(challenge.Protocol, password, salt, challenge.Iteration)
	if err != nil {
		return Proof{}, err
	}
	err = a.client.Generate(salt, serverPublic, key)
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %w", ErrInvalidChallenge, err)
	}
	m1, err := a.client.M1()
	if err != nil {
		return Proof{}, err
	}
	m2, err := a.client.M2()
	if err != nil {
		return Proof{}, err
	}
	a.state = stateProofReady

	return Proof{
		AccountName: a.username,
		M1:          base64.StdEncoding.EncodeToString(m1),
		M2:          base64.StdEncoding.EncodeToString(m2),
		C:           challenge.C,
	}, nil
}
