package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomChecksLowLevelCall(t *testing.T) {
	assert := assert.New(t)

	findings := CustomChecks(`
        (bool success, ) = recipient.call("");
        doSomethingElse();
`)
	assert.Contains(findings, "Use of '.call' without success verification.")

	findings = CustomChecks(`
        (bool success, ) = recipient.call("");
        require(success, "transfer failed");
`)
	assert.NotContains(findings, "Use of '.call' without success verification.")
}

func TestCustomChecksPublicFunction(t *testing.T) {
	assert := assert.New(t)

	findings := CustomChecks(`
    function doAnything(string memory id) public {
        elementStates[id] = State.DONE;
    }
`)
	assert.Len(findings, 1)
	assert.Contains(findings[0], "Public function without adequate security controls:")
	assert.Contains(findings[0], "doAnything")

	findings = CustomChecks(`
    function doAnything(string memory id) public nonReentrant whenNotPaused {
        elementStates[id] = State.DONE;
    }
`)
	assert.Empty(findings)

	findings = CustomChecks(`
    function reset(string memory id) public onlyOwner {
        elementStates[id] = State.DISABLED;
    }
`)
	assert.Empty(findings)
}

func TestCustomChecksDeprecatedTransfer(t *testing.T) {
	assert := assert.New(t)

	findings := CustomChecks(`
        payable(recipient).transfer(amount);
`)
	assert.Contains(findings, "Use of transfer/send instead of the recommended call pattern.")

	findings = CustomChecks(`
        recipient.send(amount);
`)
	assert.Contains(findings, "Use of transfer/send instead of the recommended call pattern.")
}

func TestCustomChecksPublicState(t *testing.T) {
	assert := assert.New(t)

	findings := CustomChecks(`
    uint public totalRuns;
    address private owner;
`)
	assert.Len(findings, 1)
	assert.Contains(findings[0], "Public state variable found: uint public totalRuns.")
}
