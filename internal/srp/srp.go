// Package srp implements the client half of SRP-6a over the RFC 5054 2048-bit
// group with SHA-256, in the variant used by Apple's GSA service where the
// username is left out of the private key x.
package srp

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
)

var (
	ErrInvalidServerValue = errors.New("srp: server public value is invalid")
	ErrAbortedU           = errors.New("srp: scrambling parameter is zero")
	ErrNotGenerated       = errors.New("srp: proofs requested before Generate")
)

const nHex = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
	"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
	"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
	"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
	"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
	"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
	"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

var (
	groupN *big.Int
	groupG = big.NewInt(2)
	// nLen is the byte length every padded value is left-padded to.
	nLen int
)

func init() {
	groupN, _ = new(big.Int).SetString(nHex, 16)
	nLen = len(groupN.Bytes())
}

func hash(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func pad(b []byte) []byte {
	if len(b) >= nLen {
		return b
	}
	out := make([]byte, nLen)
	copy(out[nLen-len(b):], b)
	return out
}

func hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(hash(parts...))
}

// Client holds the ephemeral state for one SRP handshake.
type Client struct {
	username []byte
	a        *big.Int
	bigA     *big.Int

	m1 []byte
	m2 []byte
}

// NewClient creates a client with a random 256-bit private value.
func NewClient(username []byte) (*Client, error) {
	private := make([]byte, 32)
	_, err := rand.Read(private)
	if err != nil {
		return nil, err
	}
	return NewClientWithPrivate(username, private), nil
}

// NewClientWithPrivate creates a client with a fixed private value.
func NewClientWithPrivate(username, private []byte) *Client {
	a := new(big.Int).SetBytes(private)
	return &Client{
		username: bytes.Clone(username),
		a:        a,
		bigA:     new(big.Int).Exp(groupG, a, groupN),
	}
}

// A returns the client's public value.
func (c *Client) A() []byte {
	return c.bigA.Bytes()
}

// Generate computes the shared key and both proofs from the server's salt and
// public value and the password key derived by the caller.
func (c *Client) Generate(salt, serverPublic, passwordKey []byte) error {
	bigB := new(big.Int).SetBytes(serverPublic)
	if new(big.Int).Mod(bigB, groupN).Sign() == 0 {
		return ErrInvalidServerValue
	}

	k := hashInt(groupN.Bytes(), pad(groupG.Bytes()))
	u := hashInt(pad(c.bigA.Bytes()), pad(bigB.Bytes()))
	if u.Sign() == 0 {
		return ErrAbortedU
	}
	x := hashInt(salt, hash([]byte(":"), passwordKey))

	// S = (B - k * g^x) ^ (a + u * x) mod N
	base := new(big.Int).Exp(groupG, x, groupN)
	base.Mul(base, k)
	base.Sub(bigB, base)
	base.Mod(base, groupN)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)
	secret := new(big.Int).Exp(base, exp, groupN)

	key := hash(secret.Bytes())

	hn := hash(groupN.Bytes())
	hg := hash(groupG.Bytes())
	for i := range hn {
		hn[i] ^= hg[i]
	}

	c.m1 = hash(hn, hash(c.username), salt, c.bigA.Bytes(), bigB.Bytes(), key)
	c.m2 = hash(c.bigA.Bytes(), c.m1, key)
	return nil
}

// M1 returns the client's proof.
func (c *Client) M1() ([]byte, error) {
	if c.m1 == nil {
		return nil, ErrNotGenerated
	}
	return bytes.Clone(c.m1), nil
}

// M2 returns the proof the server is expected to answer with.
func (c *Client) M2() ([]byte, error) {
	if c.m2 == nil {
		return nil, ErrNotGenerated
	}
	return bytes.Clone(c.m2), nil
}
