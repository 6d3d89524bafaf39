package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jgorset/fandjango/internal/domain"
	"github.com/jgorset/fandjango/internal/signedrequest"
)

// State is the terminal authentication state of a request.
type State int

const (
	// StateNoCredential means no verifiable credential accompanied the
	// request; the viewer is anonymous.
	StateNoCredential State = iota
	// StateDenied means the viewer explicitly refused authorization.
	StateDenied
	// StatePendingExchange means an authorization code arrived but has not
	// been exchanged for a token yet.
	StatePendingExchange
	// StateTokenExpired means the viewer's credential has lapsed and must be
	// renewed.
	StateTokenExpired
	// StateAuthenticated means a user and valid token were resolved.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateDenied:
		return "denied"
	case StatePendingExchange:
		return "pending_exchange"
	case StateTokenExpired:
		return "token_expired"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "no_credential"
	}
}

// Identity is the resolved authentication outcome attached to the request
// context. User, Token, and Payload are populated only in the states that
// produce them.
type Identity struct {
	State   State
	User    *domain.User
	Token   *domain.OAuthToken
	Payload *signedrequest.Payload
}

// Authenticated reports whether a user was resolved.
func (i *Identity) Authenticated() bool {
	return i != nil && i.State == StateAuthenticated
}

const identityKey = "fandjangoIdentity"

// SetIdentity attaches the authentication outcome to the request.
func SetIdentity(c *gin.Context, identity *Identity) {
	c.Set(identityKey, identity)
}

// GetIdentity exposes the authentication outcome to handlers.
func GetIdentity(c *gin.Context) (*Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*Identity)
	return identity, ok
}
