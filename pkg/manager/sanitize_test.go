package manager

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidHostname(t *testing.T) {
	for _, ok := range []string{
		"prod.example.com", "web-1", "10.0.0.5", "::1", "fe80::1%en0", "2001:db8::42", "my_host",
	} {
		assert.True(t, ValidHostname(ok), ok)
	}
	for _, bad := range []string{
		"", "-oProxyCommand=x", "[::1]", "host name", "a;b", "$(id)", "x`y`", "user@host", `"q"`,
		strings.Repeat("a", 254),
	} {
		assert.False(t, ValidHostname(bad), bad)
	}
}

func TestValidUsername(t *testing.T) {
	for _, ok := range []string{"admin", "deploy.bot", "svc_01", "machine$"} {
		assert.True(t, ValidUsername(ok), ok)
	}
	for _, bad := range []string{"", "-l", "a b", "root@x", "a$b", "x'y"} {
		assert.False(t, ValidUsername(bad), bad)
	}
}

func TestCheckTarget_IPv6(t *testing.T) {
	h := HostProfile{Name: "lo6", Hostname: "::1", Username: "me", Port: 22, Auth: AuthKey}
	assert.NoError(t, CheckTarget(h))
	assert.Equal(t, "me@::1", h.Destination())

	h.Hostname = "[::1]"
	assert.ErrorIs(t, CheckTarget(h), ErrUnsafeField)
}
