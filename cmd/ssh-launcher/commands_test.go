package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssh-session-launcher/pkg/manager"
)

func TestFindHost(t *testing.T) {
	hosts := []manager.HostProfile{
		{Name: "Prod", Username: "admin", Hostname: "prod.example.com"},
		{Name: "Prod (alt)", Username: "admin", Hostname: "prod.example.com"},
		{Name: "Web", Username: "deploy", Hostname: "web1.example.com"},
		{Name: "Web", Username: "deploy", Hostname: "web2.example.com"},
	}

	h, err := findHost(hosts, "prod")
	require.NoError(t, err)
	assert.Equal(t, "Prod", h.Name)

	h, err = findHost(hosts, "admin@prod.example.com")
	require.NoError(t, err, "same identity twice is not ambiguous")
	assert.Equal(t, "prod.example.com", h.Hostname)

	_, err = findHost(hosts, "Web")
	assert.ErrorContains(t, err, "matches 2 hosts")

	_, err = findHost(hosts, "nope")
	assert.Error(t, err)
}

func TestPromptHost_AsksForMissingFields(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("Cache\ncache.lan\nops\n\nkey\n\n\ncache, prod\n"))
	var out bytes.Buffer

	h, err := promptHost(in, &out, manager.HostProfile{})
	require.NoError(t, err)
	assert.Equal(t, "Cache", h.Name)
	assert.Equal(t, "cache.lan", h.Hostname)
	assert.Equal(t, 22, h.Port)
	assert.Equal(t, manager.AuthKey, h.Auth)
	assert.Equal(t, "~/.ssh/id_rsa", h.SSHKeyPath)
	assert.Equal(t, manager.DefaultItermProfile, h.ItermProfile)
	assert.Equal(t, []string{"cache", "prod"}, h.Tags)
	assert.Contains(t, out.String(), "SSH port [22]: ")
}

func TestPromptHost_FlagsSkipQuestions(t *testing.T) {
	var out bytes.Buffer
	preset := manager.HostProfile{
		Name: "Web", Hostname: "web.lan", Username: "deploy", Port: 2222,
		Auth: manager.AuthPassword, ItermProfile: "Prod", Tags: []string{"web"},
	}
	h, err := promptHost(bufio.NewReader(strings.NewReader("")), &out, preset)
	require.NoError(t, err)
	assert.Equal(t, 2222, h.Port)
	assert.NotContains(t, out.String(), "Hostname")
}

func TestPromptHost_BadPortAndCancel(t *testing.T) {
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader("A\na.lan\nme\nabc\n\n\n\n"))
	h, err := promptHost(in, &out, manager.HostProfile{})
	require.NoError(t, err)
	assert.Equal(t, 22, h.Port)
	assert.Contains(t, out.String(), `Invalid port "abc"`)

	_, err = promptHost(bufio.NewReader(strings.NewReader("A\n")), &bytes.Buffer{}, manager.HostProfile{})
	assert.ErrorContains(t, err, "cancelled")
}

func TestPromptHost_RejectsUnsafeHostname(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("X\n-oProxyCommand=sh\nme\n\n\n\n\n"))
	_, err := promptHost(in, &bytes.Buffer{}, manager.HostProfile{})
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	assert.True(t, confirm(bufio.NewReader(strings.NewReader("Y\n")), &bytes.Buffer{}, "ok?"))
	assert.False(t, confirm(bufio.NewReader(strings.NewReader("\n")), &bytes.Buffer{}, "ok?"))
	assert.False(t, confirm(bufio.NewReader(strings.NewReader("")), &bytes.Buffer{}, "ok?"))
}

func TestUIBackgroundArgs(t *testing.T) {
	args := uiBackgroundArgs("/cfg/hosts.yaml", "info", "tmux", "127.0.0.1", silentPort)
	assert.Equal(t, []string{
		"--config", "/cfg/hosts.yaml", "--log-level", "info", "--terminal", "tmux",
		"ui", "--addr", "127.0.0.1", "--port", "7890",
	}, args)
	assert.NotContains(t, args, "--silent")
}
