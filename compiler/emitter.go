package compiler

import (
	"fmt"
	"strings"
)

const contractHeader = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.20;

import "@openzeppelin/contracts/utils/ReentrancyGuard.sol";
import "@openzeppelin/contracts/access/Ownable.sol";
import "@openzeppelin/contracts/utils/Pausable.sol";

/**
 * @title Smart Contract automatically generated from a BPMN diagram
 * @dev Timer events handled using block numbers.
 */
`

const contractDeclarations = `    enum State { DISABLED, ENABLED, DONE }

    mapping(string => State) public elementStates;
    mapping(string => uint256) public blockLimits;
    mapping(string => address) public participantAddresses;

    struct AuditLog {
        string taskId;
        address user;
        uint256 timestamp;
    }

    AuditLog[] public auditLogs;
    event TaskCompleted(string taskId);

    event TimerScheduled(string timerId, uint256 deadlineBlock);

    struct GatewayData {
        string participantName;
        string[] dependencies;
        string yesTargetId;
        string noTargetId;
    }

    mapping(string => GatewayData) public gatewayMap;

`

const adminFunctions = `    function updateParticipantAddress(string memory participant, address newAddress) public onlyOwner {
        require(newAddress != address(0), "Invalid address");
        participantAddresses[participant] = newAddress;
    }

    function pause() public onlyOwner {
        _pause();
    }

    function unpause() public onlyOwner {
        _unpause();
    }

    function resetElementState(string memory elementId) public onlyOwner {
        elementStates[elementId] = State.DISABLED;
    }

    function logAudit(string memory taskId) private {
        auditLogs.push(AuditLog({taskId: taskId, user: msg.sender, timestamp: block.timestamp}));
    }

`

const gatewayActionFunction = `    function gatewayAction(string memory gatewayId, bool condition) public nonReentrant whenNotPaused {
        GatewayData memory gdata = gatewayMap[gatewayId];

        require(elementStates[gatewayId] == State.ENABLED, "Gateway not enabled");
        require(msg.sender == participantAddresses[gdata.participantName], "Only correct participant can call");

        for (uint i = 0; i < gdata.dependencies.length; i++) {
            require(elementStates[gdata.dependencies[i]] == State.DONE, "Dependency not completed");
        }

        elementStates[gatewayId] = State.DONE;
        logAudit(gatewayId);
        emit TaskCompleted(gatewayId);

        if (condition) {
            if (bytes(gdata.yesTargetId).length > 0) {
                elementStates[gdata.yesTargetId] = State.ENABLED;
            }
        } else {
            if (bytes(gdata.noTargetId).length > 0) {
                elementStates[gdata.noTargetId] = State.ENABLED;
            }
        }
    }

`

// emit writes the contract source. The output is a deterministic function of
// the compilation unit - elements are emitted in document order.
func emit(unit *CompilationUnit) string {
	e := emitter{unit: unit}

	e.sb.WriteString(contractHeader)
	e.linef("contract %s is ReentrancyGuard, Ownable, Pausable {", unit.ContractName)
	e.line("")
	e.sb.WriteString(contractDeclarations)

	e.writeConstructor()
	e.sb.WriteString(adminFunctions)
	e.writeStartEventFunction()
	e.writeTaskFunctions()
	e.writeIntermediateEventFunctions()
	e.writeTimerFunctions()
	e.sb.WriteString(gatewayActionFunction)

	e.line("}")

	return e.sb.String()
}

type emitter struct {
	sb   strings.Builder
	unit *CompilationUnit
}

func (e *emitter) line(s string) {
	e.sb.WriteString(s)
	e.sb.WriteRune('\n')
}

func (e *emitter) linef(format string, args ...any) {
	fmt.Fprintf(&e.sb, format, args...)
	e.sb.WriteRune('\n')
}

func (e *emitter) writeConstructor() {
	unit := e.unit

	e.line("    constructor() Ownable(msg.sender) Pausable() {")

	for _, participant := range unit.Participants {
		e.linef(`        participantAddresses["%s"] = %s;`, escapeString(participant.Name), participant.Address)
	}
	e.line("")

	e.linef(`        elementStates["%s"] = State.ENABLED;`, unit.StartEvent.Id)
	e.line("")

	// explicit writes instead of default storage values, to keep the initial state auditable
	for _, task := range unit.Tasks {
		e.linef(`        elementStates["%s"] = State.DISABLED;`, task.Id)
	}
	for _, gateway := range unit.Gateways {
		e.linef(`        elementStates["%s"] = State.DISABLED;`, gateway.Id)
	}
	for _, event := range unit.IntermediateEvents {
		e.linef(`        elementStates["%s"] = State.DISABLED;`, event.Id)
	}
	e.line("")

	if len(unit.Timers) != 0 {
		e.line("        // initialize all timer events, so that they start counting from deployment")
		for _, timer := range unit.Timers {
			e.linef(`        blockLimits["%s"] = block.number + %d;`, timer.Id, timer.Blocks)
			e.linef(`        elementStates["%s"] = State.ENABLED;`, timer.Id)
			e.linef(`        emit TimerScheduled("%s", block.number + %d);`, timer.Id, timer.Blocks)
		}
		e.line("")
	}

	for _, gateway := range unit.Gateways {
		dependencyIds := unit.DependenciesOf(gateway.Id)
		yesTargetId, noTargetId := unit.BranchTargets(gateway)

		e.line("        {")
		e.linef("            string[] memory depArr = new string[](%d);", len(dependencyIds))
		for i, dependencyId := range dependencyIds {
			e.linef(`            depArr[%d] = "%s";`, i, dependencyId)
		}
		e.linef(`            gatewayMap["%s"] = GatewayData({`, gateway.Id)
		e.linef(`                participantName: "%s",`, escapeString(unit.ParticipantFor(gateway)))
		e.line("                dependencies: depArr,")
		e.linef(`                yesTargetId: "%s",`, yesTargetId)
		e.linef(`                noTargetId: "%s"`, noTargetId)
		e.line("            });")
		e.line("        }")
	}

	e.line("    }")
	e.line("")
}

func (e *emitter) writeStartEventFunction() {
	unit := e.unit
	startEventId := unit.StartEvent.Id
	participantName := unit.ParticipantFor(unit.StartEvent)

	e.line("    function startEvent() public nonReentrant whenNotPaused {")
	e.linef(`        require(elementStates["%s"] == State.ENABLED, "StartEvent not enabled");`, startEventId)
	if participantName != UnknownParticipant {
		e.linef(`        require(msg.sender == participantAddresses["%s"], "Only %s can do this task");`, escapeString(participantName), escapeString(participantName))
	} else {
		e.line("        // start event open to any caller")
	}
	e.line("")

	e.writeCompletion(startEventId)
	e.writeArming(startEventId)

	e.line("    }")
	e.line("")
}

func (e *emitter) writeTaskFunctions() {
	for _, task := range e.unit.Tasks {
		participantName := e.unit.ParticipantFor(task)

		e.linef("    function %s() public nonReentrant whenNotPaused {", e.unit.OperationNames[task.Id])
		e.linef(`        require(elementStates["%s"] == State.ENABLED, "Task not enabled");`, task.Id)
		e.linef(`        require(msg.sender == participantAddresses["%s"], "Only %s can do this task");`, escapeString(participantName), escapeString(participantName))
		e.line("")

		e.writeDependencyGuard(task.Id)
		e.writeCompletion(task.Id)
		e.writeArming(task.Id)

		e.line("    }")
		e.line("")
	}
}

func (e *emitter) writeIntermediateEventFunctions() {
	for _, event := range e.unit.IntermediateEvents {
		participantName := e.unit.ParticipantFor(event)

		e.linef("    function %s() public nonReentrant whenNotPaused {", e.unit.OperationNames[event.Id])
		e.linef(`        require(elementStates["%s"] == State.ENABLED, "Event not enabled");`, event.Id)
		e.linef(`        require(msg.sender == participantAddresses["%s"], "Only %s can trigger this event");`, escapeString(participantName), escapeString(participantName))
		e.line("")

		e.writeDependencyGuard(event.Id)
		e.writeCompletion(event.Id)
		e.writeArming(event.Id)

		e.line("    }")
		e.line("")
	}
}

func (e *emitter) writeTimerFunctions() {
	for _, timer := range e.unit.Timers {
		e.linef("    function %s() public nonReentrant whenNotPaused {", timer.TriggerName)
		e.linef(`        require(elementStates["%s"] == State.ENABLED, "Timer event not enabled");`, timer.Id)
		e.linef(`        require(block.number >= blockLimits["%s"], "Timer not expired yet");`, timer.Id)
		e.line("")

		e.writeCompletion(timer.Id)

		// a timer is a fact of the chain - successors are armed without re-arming nested timers
		sourceIds := []string{timer.Id}
		if timer.Host != nil && timer.Host.Id != timer.Id {
			sourceIds = append(sourceIds, timer.Host.Id)
		}
		for _, sequenceFlow := range e.unit.SequenceFlowsFrom(sourceIds...) {
			e.linef(`        elementStates["%s"] = State.ENABLED;`, sequenceFlow.Target.Id)
		}
		for _, messageFlow := range e.unit.MessageFlowsFrom(sourceIds...) {
			e.linef(`        elementStates["%s"] = State.ENABLED;`, messageFlow.Target.Id)
		}

		e.line("    }")
		e.line("")
	}
}

// writeDependencyGuard emits the dependencies-done check: no guard without
// dependencies, an equality guard for a single dependency and a disjunctive
// guard when the element merges alternative branches.
func (e *emitter) writeDependencyGuard(elementId string) {
	dependencyIds := e.unit.DependenciesOf(elementId)

	switch len(dependencyIds) {
	case 0:
		return
	case 1:
		e.linef(`        require(elementStates["%s"] == State.DONE, "Dependency not completed");`, dependencyIds[0])
	default:
		e.line("        require(")
		for i, dependencyId := range dependencyIds {
			if i < len(dependencyIds)-1 {
				e.linef(`            elementStates["%s"] == State.DONE ||`, dependencyId)
			} else {
				e.linef(`            elementStates["%s"] == State.DONE,`, dependencyId)
			}
		}
		e.line(`            "At least one dependency must be completed"`)
		e.line("        );")
	}
	e.line("")
}

// writeCompletion emits the state transition, followed by the audit entry and
// the completion event - in this order.
func (e *emitter) writeCompletion(elementId string) {
	e.linef(`        elementStates["%s"] = State.DONE;`, elementId)
	e.linef(`        logAudit("%s");`, elementId)
	e.linef(`        emit TaskCompleted("%s");`, elementId)
	e.line("")
}

// writeArming enables the targets of all outgoing sequence and message flows.
// A target hosting a timer additionally gets a fresh deadline.
func (e *emitter) writeArming(elementId string) {
	for _, sequenceFlow := range e.unit.SequenceFlowsFrom(elementId) {
		e.writeTargetArming(sequenceFlow.Target.Id)
	}
	for _, messageFlow := range e.unit.MessageFlowsFrom(elementId) {
		e.writeTargetArming(messageFlow.Target.Id)
	}
}

func (e *emitter) writeTargetArming(targetId string) {
	timer := e.unit.TimerFor(targetId)
	if timer == nil {
		e.linef(`        elementStates["%s"] = State.ENABLED;`, targetId)
		return
	}

	if timer.Id != targetId {
		e.linef(`        elementStates["%s"] = State.ENABLED;`, targetId)
	}
	e.linef(`        blockLimits["%s"] = block.number + %d;`, timer.Id, timer.Blocks)
	e.linef(`        elementStates["%s"] = State.ENABLED;`, timer.Id)
	e.linef(`        emit TimerScheduled("%s", block.number + %d);`, timer.Id, timer.Blocks)
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
