package main

import (
	"context"
	"testing"

	"design_vault/internal/lib/logger/handlers/slogdiscard"
	"design_vault/internal/vault"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "a", want: []string{"a"}},
		{in: " a, b ,,c ", want: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.in))
		})
	}
}

func TestRun_BadArguments(t *testing.T) {
	gw := vault.NewHTTPGateway("http://127.0.0.1:0", nil)
	log := slogdiscard.NewDiscardLogger()

	tests := []struct {
		cmd  string
		args []string
	}{
		{cmd: "explode"},
		{cmd: "rename", args: []string{"only-id"}},
		{cmd: "delete"},
		{cmd: "tag", args: []string{"add", "id"}},
		{cmd: "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.Error(t, run(context.Background(), log, gw, tt.cmd, tt.args))
		})
	}
}
