package compiler

import (
	"strings"
	"testing"

	"github.com/gclaussn/bpmn-sol/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompilationUnit(t *testing.T) {
	assert := assert.New(t)

	m := mustCreateModel(t, "collaboration/order.bpmn")

	input := Input{
		ContractName: "OrderContract",
		Participants: []ParticipantAddress{
			{Name: "Buyer", Address: buyerAddress},
			{Name: "Seller", Address: sellerAddress},
		},
	}

	// when
	unit, err := NewCompilationUnit(m, input)
	require.NoError(t, err)

	// then
	assert.Equal("OrderContract", unit.ContractName)
	assert.Equal("startEvent1", unit.StartEvent.Id)
	assert.Len(unit.EndEvents, 1)
	assert.Len(unit.Tasks, 4)
	assert.Len(unit.Gateways, 1)
	assert.Empty(unit.IntermediateEvents)
	assert.Empty(unit.Timers)

	assert.Equal([]string{"placeOrder"}, unit.DependenciesOf("approvedGateway"))
	assert.Equal([]string{"payOrder", "cancelOrder"}, unit.DependenciesOf("endEvent1"))
	assert.Empty(unit.DependenciesOf("receiveOrder")) // message flows are not dependencies

	yesTargetId, noTargetId := unit.BranchTargets(m.ElementById("approvedGateway"))
	assert.Equal("payOrder", yesTargetId)
	assert.Equal("cancelOrder", noTargetId)

	assert.Equal("Buyer", unit.ParticipantFor(m.ElementById("placeOrder")))
	assert.Equal("Seller", unit.ParticipantFor(m.ElementById("receiveOrder")))

	assert.Equal("placeOrder", unit.OperationNames["placeOrder"])
	assert.Equal("payOrder", unit.OperationNames["payOrder"])
	assert.Equal("cancelOrder", unit.OperationNames["cancelOrder"])
	assert.Equal("receiveOrder", unit.OperationNames["receiveOrder"])
}

func TestNewCompilationUnitRequiresStartAndEndEvent(t *testing.T) {
	assert := assert.New(t)

	m := mustCreateModel(t, "invalid/no-start-event.bpmn")

	// when
	_, err := NewCompilationUnit(m, Input{ContractName: "Test"})

	// then
	compilerErr, ok := err.(Error)
	assert.True(ok)
	assert.Equal(ErrorModel, compilerErr.Type)
}

func TestNewCompilationUnitMissingParticipantAddress(t *testing.T) {
	assert := assert.New(t)

	m := mustCreateModel(t, "collaboration/order.bpmn")

	input := Input{
		ContractName: "OrderContract",
		Participants: []ParticipantAddress{
			{Name: "Buyer", Address: buyerAddress},
		},
	}

	// when
	_, err := NewCompilationUnit(m, input)

	// then
	compilerErr, ok := err.(Error)
	assert.True(ok)
	assert.Equal(ErrorInvalidAddress, compilerErr.Type)
	assert.Contains(compilerErr.Detail, "Seller")
}

func TestNewCompilationUnitNameCollision(t *testing.T) {
	assert := assert.New(t)

	bpmnXml := `<definitions id="test">
  <process id="p1" isExecutable="true">
    <startEvent id="s1">
      <outgoing>f1</outgoing>
    </startEvent>
    <task id="t1" name="Pay Order">
      <incoming>f1</incoming>
      <outgoing>f2</outgoing>
    </task>
    <task id="t2" name="Pay-Order">
      <incoming>f2</incoming>
      <outgoing>f3</outgoing>
    </task>
    <endEvent id="e1">
      <incoming>f3</incoming>
    </endEvent>
  </process>
</definitions>`

	m, err := model.New(strings.NewReader(bpmnXml))
	assert.NoError(err)

	// when
	_, err = NewCompilationUnit(m, Input{ContractName: "Test"})

	// then
	compilerErr, ok := err.(Error)
	assert.True(ok)
	assert.Equal(ErrorNameCollision, compilerErr.Type)
	assert.Contains(compilerErr.Detail, "Pay Order")
	assert.Contains(compilerErr.Detail, "Pay-Order")
	assert.Contains(compilerErr.Detail, "payOrder")
}

func TestTimerBlocks(t *testing.T) {
	assert := assert.New(t)

	blocks, warning := timerBlocks("t1", model.TimerEventDefinition{TimeDuration: "P5D"})
	assert.Equal(5*BlocksPerDay, blocks)
	assert.Empty(warning)

	blocks, warning = timerBlocks("t1", model.TimerEventDefinition{TimeDuration: " P30D "})
	assert.Equal(216000, blocks)
	assert.Empty(warning)

	// non-PnD durations fall back to 30 days
	blocks, warning = timerBlocks("t1", model.TimerEventDefinition{TimeDuration: "P3M"})
	assert.Equal(FallbackBlocks, blocks)
	assert.Contains(warning, `unsupported duration "P3M"`)

	blocks, warning = timerBlocks("t1", model.TimerEventDefinition{TimeDate: "2026-01-01T00:00:00Z"})
	assert.Equal(FallbackBlocks, blocks)
	assert.Contains(warning, "timeDate is not supported")

	blocks, warning = timerBlocks("t1", model.TimerEventDefinition{TimeCycle: "0 9 * * 1"})
	assert.Equal(FallbackBlocks, blocks)
	assert.Contains(warning, "cron expression")

	blocks, warning = timerBlocks("t1", model.TimerEventDefinition{TimeCycle: "R3/PT10M"})
	assert.Equal(FallbackBlocks, blocks)
	assert.Contains(warning, "timeCycle is not supported")

	blocks, warning = timerBlocks("t1", model.TimerEventDefinition{})
	assert.Equal(FallbackBlocks, blocks)
	assert.Contains(warning, "no duration payload")
}

func TestTimerFor(t *testing.T) {
	assert := assert.New(t)

	m := mustCreateModel(t, "event/timer-duration.bpmn")

	unit, err := NewCompilationUnit(m, Input{
		ContractName: "TimerContract",
		Participants: []ParticipantAddress{{Name: "Operator", Address: operatorAddress}},
	})
	require.NoError(t, err)

	require.Len(t, unit.Timers, 1)

	timer := unit.Timers[0]
	assert.Equal("T", timer.Id)
	assert.Equal(5*BlocksPerDay, timer.Blocks)
	assert.Equal("triggerT", timer.TriggerName)
	assert.Equal("deadlineEvent", timer.Host.Id)

	assert.Equal(timer, unit.TimerFor("T"))
	assert.Equal(timer, unit.TimerFor("deadlineEvent"))
	assert.Nil(unit.TimerFor("taskA"))
}

func TestDuplicateParticipantsForProcess(t *testing.T) {
	assert := assert.New(t)

	bpmnXml := `<definitions id="test">
  <collaboration id="c1">
    <participant id="p1" name="First" processRef="process1" />
    <participant id="p2" name="Second" processRef="process1" />
  </collaboration>
  <process id="process1" isExecutable="true">
    <startEvent id="s1">
      <outgoing>f1</outgoing>
    </startEvent>
    <endEvent id="e1">
      <incoming>f1</incoming>
    </endEvent>
  </process>
</definitions>`

	m, err := model.New(strings.NewReader(bpmnXml))
	assert.NoError(err)

	input := Input{
		ContractName: "Test",
		Participants: []ParticipantAddress{
			{Name: "First", Address: buyerAddress},
			{Name: "Second", Address: sellerAddress},
		},
	}

	// when
	unit, err := NewCompilationUnit(m, input)
	assert.NoError(err)

	// then: the first occurrence wins and a warning is recorded
	assert.Equal("First", unit.ParticipantFor(m.ElementById("s1")))
	assert.Len(unit.Warnings, 1)
	assert.Contains(unit.Warnings[0], "process1")
}
