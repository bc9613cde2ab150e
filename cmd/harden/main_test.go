package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epoxyos/harden/internal/buildererr"
)

func TestNewRootCmdRegistersAllSubcommands(t *testing.T) {
	root := newRootCmd()

	want := []string{"verify", "list-processes", "configure-process", "configure-kernel", "boot-image"}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}

	assert.ElementsMatch(t, want, got)
}

func TestRootRequiresCfgRootAndSystem(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"verify"})
	err := root.Execute()
	assert.Error(t, err)
}

func TestPrintCausalChainDoesNotPanicOnPlainError(t *testing.T) {
	assert.NotPanics(t, func() {
		printCausalChain(buildererr.New(buildererr.IO, "boom"))
	})
}
