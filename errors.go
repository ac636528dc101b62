package authclient

import (
	"errors"

	"github.com/MrEthical07/authclient/authapi"
	"github.com/MrEthical07/authclient/gatekeeper"
	"github.com/MrEthical07/authclient/refresh"
	"github.com/MrEthical07/authclient/session"
	"github.com/MrEthical07/authclient/token"
)

var (
	// ErrUnauthenticated is returned for a non-exempt call made without a session. The call
	// never reaches the network.
	ErrUnauthenticated = gatekeeper.ErrUnauthenticated
	// ErrRefreshFailed is returned to every caller of a failed renewal. The session has been
	// cleared and the user sent to the login route.
	ErrRefreshFailed = refresh.ErrRefreshFailed
	// ErrMalformedToken is returned when a login response carries an access token that does
	// not decode.
	ErrMalformedToken = token.ErrMalformed
	// ErrInvalidCredentials is returned by Login when the user service rejects the password.
	ErrInvalidCredentials = authapi.ErrInvalidCredentials
	// ErrInvalidSession is returned when a credential write lacks either token.
	ErrInvalidSession = session.ErrInvalidCredentials
	// ErrUnauthorizedRoute is returned by Authorize when the session may not enter a view.
	ErrUnauthorizedRoute = errors.New("route not permitted for current session")
	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("auth manager closed")
)
