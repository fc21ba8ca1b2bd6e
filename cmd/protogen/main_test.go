package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-package", "orders", "-go-package", "example.com/orders/pb"}, &out))

	text := out.String()
	assert.Contains(t, text, "\npackage orders;\n")
	assert.Contains(t, text, "\noption go_package = \"example.com/orders/pb\";\n")
	assert.Contains(t, text, "\nmessage Order {\n")
	assert.Contains(t, text, "    repeated LineItem items = 8;\n")
}

func TestRun_BadFlag(t *testing.T) {
	require.Error(t, run([]string{"-url-expiry", "later"}, &bytes.Buffer{}))
}
