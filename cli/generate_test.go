package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyerAddress  = "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"
	sellerAddress = "0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2"
)

func TestGenerate(t *testing.T) {
	assert := assert.New(t)

	cli := New("test-version")

	var stdout, stderr bytes.Buffer
	cli.stdout = &stdout
	cli.stderr = &stderr

	outDir := t.TempDir()

	cli.rootCmd.SetArgs([]string{
		"generate",
		"--file", "../test/bpmn/collaboration/order.bpmn",
		"--name", "OrderContract",
		"--address", "Buyer=" + buyerAddress,
		"--address", "Seller=" + sellerAddress,
		"--out-dir", outDir,
		"--skip-analysis",
	})

	// when
	require.NoError(t, cli.rootCmd.Execute())

	// then
	assert.Contains(stdout.String(), "Smart contract generated: ")

	b, err := os.ReadFile(filepath.Join(outDir, "OrderContract.sol"))
	require.NoError(t, err)

	source := string(b)
	assert.Contains(source, "contract OrderContract is ReentrancyGuard, Ownable, Pausable {")
	assert.Contains(source, `participantAddresses["Buyer"] = `+buyerAddress+";")
}

func TestGenerateInteractive(t *testing.T) {
	assert := assert.New(t)

	cli := New("test-version")

	var stdout, stderr bytes.Buffer
	cli.stdout = &stdout
	cli.stderr = &stderr

	// diagram file path, contract name and one address per pool, in document order
	cli.stdin = strings.NewReader(
		"../test/bpmn/collaboration/order.bpmn\n" +
			"OrderContract\n" +
			buyerAddress + "\n" +
			sellerAddress + "\n",
	)

	outDir := t.TempDir()

	cli.rootCmd.SetArgs([]string{"generate", "--out-dir", outDir, "--skip-analysis"})

	// when
	require.NoError(t, cli.rootCmd.Execute())

	// then
	assert.Contains(stdout.String(), "Enter the BPMN file path: ")
	assert.Contains(stdout.String(), "Enter the smart contract name: ")
	assert.Contains(stdout.String(), "Enter Ethereum address for 'Buyer': ")
	assert.Contains(stdout.String(), "Enter Ethereum address for 'Seller': ")

	_, err := os.Stat(filepath.Join(outDir, "OrderContract.sol"))
	assert.NoError(err)
}

func TestGenerateInvalidAddress(t *testing.T) {
	assert := assert.New(t)

	cli := New("test-version")

	var stdout, stderr bytes.Buffer
	cli.stdout = &stdout
	cli.stderr = &stderr

	outDir := t.TempDir()

	cli.rootCmd.SetArgs([]string{
		"generate",
		"--file", "../test/bpmn/collaboration/order.bpmn",
		"--name", "OrderContract",
		"--address", "Buyer=0x123",
		"--address", "Seller=" + sellerAddress,
		"--out-dir", outDir,
		"--skip-analysis",
	})

	// when
	err := cli.rootCmd.Execute()

	// then: no output file is written
	assert.Error(err)

	_, statErr := os.Stat(filepath.Join(outDir, "OrderContract.sol"))
	assert.True(os.IsNotExist(statErr))
}

func TestReadDescriptor(t *testing.T) {
	assert := assert.New(t)

	configPath := filepath.Join(t.TempDir(), "order.yaml")

	assert.NoError(os.WriteFile(configPath, []byte(`
diagram: ../test/bpmn/collaboration/order.bpmn
contractName: OrderContract
participants:
  - name: Buyer
    address: `+buyerAddress+`
  - name: Seller
    address: `+sellerAddress+`
`), 0o644))

	// when
	descriptor, err := readDescriptor(configPath)
	require.NoError(t, err)

	// then
	assert.Equal("../test/bpmn/collaboration/order.bpmn", descriptor.Diagram)
	assert.Equal("OrderContract", descriptor.ContractName)
	require.Len(t, descriptor.Participants, 2)
	assert.Equal("Buyer", descriptor.Participants[0].Name)
	assert.Equal(buyerAddress, descriptor.Participants[0].Address)
}

func TestGenerateWithDescriptor(t *testing.T) {
	assert := assert.New(t)

	cli := New("test-version")

	var stdout, stderr bytes.Buffer
	cli.stdout = &stdout
	cli.stderr = &stderr

	outDir := t.TempDir()

	configPath := filepath.Join(outDir, "order.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
diagram: ../test/bpmn/collaboration/order.bpmn
contractName: OrderContract
participants:
  - name: Buyer
    address: `+buyerAddress+`
  - name: Seller
    address: `+sellerAddress+`
`), 0o644))

	cli.rootCmd.SetArgs([]string{"generate", "--config", configPath, "--out-dir", outDir, "--skip-analysis"})

	// when
	require.NoError(t, cli.rootCmd.Execute())

	// then
	_, err := os.Stat(filepath.Join(outDir, "OrderContract.sol"))
	assert.NoError(err)
}
