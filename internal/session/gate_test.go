package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etracker/internal/api"
)

type fakeAuthClient struct {
	probeErr    error
	loginErr    error
	registerErr error
	logoutErr   error

	probes    int
	logins    int
	registers int
	logouts   int
}

func (f *fakeAuthClient) ProbeSession(context.Context) error {
	f.probes++
	return f.probeErr
}

func (f *fakeAuthClient) Login(context.Context, api.Credentials) error {
	f.logins++
	return f.loginErr
}

func (f *fakeAuthClient) Register(context.Context, api.Credentials) error {
	f.registers++
	return f.registerErr
}

func (f *fakeAuthClient) Logout(context.Context) error {
	f.logouts++
	return f.logoutErr
}

func TestCheckAuthenticated(t *testing.T) {
	client := &fakeAuthClient{}
	gate := New(client, nil)

	assert.False(t, gate.Authenticated(), "gate starts anonymous")
	assert.True(t, gate.Check(context.Background()))
	assert.True(t, gate.Authenticated())
}

func TestCheckCollapsesAnyFailureToAnonymous(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"unauthorized", &api.RemoteError{Status: 401, Message: "Invalid session"}},
		{"server error", &api.RemoteError{Status: 500}},
		{"network down", errors.New("dial tcp: connection refused")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeAuthClient{}
			gate := New(client, nil)
			gate.Check(context.Background()) // authenticated first

			client.probeErr = tc.err
			assert.False(t, gate.Check(context.Background()))
			assert.False(t, gate.Authenticated())
		})
	}
}

func TestLoginSuccessRechecksSession(t *testing.T) {
	client := &fakeAuthClient{}
	gate := New(client, nil)

	err := gate.Login(context.Background(), api.Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, gate.Authenticated())
	assert.Equal(t, 1, client.probes, "login confirms state with one probe")
}

func TestLoginFailureSurfacesErrorWithoutRetry(t *testing.T) {
	client := &fakeAuthClient{loginErr: &api.RemoteError{Status: 401, Message: "Invalid credentials"}}
	gate := New(client, nil)

	err := gate.Login(context.Background(), api.Credentials{Email: "a@b.c", Password: "bad"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", api.UserMessage(err))
	assert.False(t, gate.Authenticated())
	assert.Equal(t, 1, client.logins, "no retry")
	assert.Equal(t, 0, client.probes, "no probe after failed login")
}

func TestRegisterDoesNotAuthenticate(t *testing.T) {
	client := &fakeAuthClient{}
	gate := New(client, nil)

	require.NoError(t, gate.Register(context.Background(), api.Credentials{Email: "a@b.c", Password: "pw"}))
	assert.False(t, gate.Authenticated())
	assert.Equal(t, 0, client.probes)
}

func TestLogoutFailOpen(t *testing.T) {
	// A naive reimplementation would fail closed here and leave the view
	// stuck authenticated; locking in the fail-open behavior is the point
	// of this test.
	client := &fakeAuthClient{logoutErr: errors.New("network down")}
	gate := New(client, nil)
	gate.Check(context.Background())
	require.True(t, gate.Authenticated())

	gate.Logout(context.Background())

	assert.False(t, gate.Authenticated(), "logout flips to anonymous even when the remote call fails")
	assert.Equal(t, 1, client.logouts)
}

func TestLogoutSuccess(t *testing.T) {
	client := &fakeAuthClient{}
	gate := New(client, nil)
	gate.Check(context.Background())

	gate.Logout(context.Background())
	assert.False(t, gate.Authenticated())
}
