package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelp(t *testing.T) {
	assert := assert.New(t)

	cli := New("test-version")

	cli.rootCmd.SetArgs([]string{})
	assert.NoError(cli.rootCmd.Execute())

	cli.rootCmd.SetArgs([]string{"generate", "--help"})
	assert.NoError(cli.rootCmd.Execute())
	cli.rootCmd.SetArgs([]string{"history", "--help"})
	assert.NoError(cli.rootCmd.Execute())
	cli.rootCmd.SetArgs([]string{"version"})
	assert.NoError(cli.rootCmd.Execute())
}

func TestVersion(t *testing.T) {
	assert := assert.New(t)

	cli := New("1.2.3")

	var stdout bytes.Buffer
	cli.rootCmd.SetOut(&stdout)

	cli.rootCmd.SetArgs([]string{"version"})
	assert.NoError(cli.rootCmd.Execute())
	assert.Contains(stdout.String(), "1.2.3")
}

func TestSplitPair(t *testing.T) {
	assert := assert.New(t)

	name, value, ok := splitPair("Buyer=0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	assert.True(ok)
	assert.Equal("Buyer", name)
	assert.Equal("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4", value)

	_, _, ok = splitPair("Buyer")
	assert.False(ok)
	_, _, ok = splitPair("=0x")
	assert.False(ok)
	_, _, ok = splitPair("Buyer=")
	assert.False(ok)
}
