package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/gclaussn/bpmn-sol/model"
)

// UnknownParticipant is the sentinel used when an element cannot be traced to a pool.
// Operations guarded by the sentinel have no configured address and reject any caller at runtime.
const UnknownParticipant = "UnknownParticipant"

const (
	// BlocksPerDay assumes one block every 12 seconds.
	BlocksPerDay = 7200
	// FallbackBlocks is applied when a timer payload is missing or unsupported (30 days).
	FallbackBlocks = 30 * BlocksPerDay
)

var timeDurationRegexp = regexp.MustCompile(`^P([0-9]+)D$`)

// Timer is a timer event definition, reduced to what the emitter needs.
type Timer struct {
	Id          string         // ID of the definition, or of the host event, if the definition has none.
	Name        string         // Name, or id, the trigger function is derived from.
	Host        *model.Element // Intermediate catch event, containing the definition.
	Blocks      int            // Deadline duration in blocks.
	TriggerName string         // Name of the emitted trigger function.
}

// CompilationUnit is the emission-ready view of a BPMN collaboration.
type CompilationUnit struct {
	ContractName string
	Participants []ParticipantAddress

	StartEvent         *model.Element
	EndEvents          []*model.Element
	Tasks              []*model.Element
	Gateways           []*model.Element
	IntermediateEvents []*model.Element
	Timers             []*Timer

	SequenceFlows []*model.SequenceFlow
	MessageFlows  []*model.MessageFlow

	// OperationNames maps an element id to its emitted operation name.
	OperationNames map[string]string

	Warnings []string

	processToParticipant map[string]string
}

func NewCompilationUnit(m *model.Model, input Input) (*CompilationUnit, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	startEvents := m.ElementsByType(model.ElementNoneStartEvent)
	endEvents := m.ElementsByType(model.ElementNoneEndEvent)

	if len(startEvents) == 0 || len(endEvents) == 0 {
		return nil, Error{
			Type:   ErrorModel,
			Title:  "invalid BPMN model",
			Detail: "at least one start event and one end event are required",
		}
	}
	if len(startEvents) > 1 {
		return nil, Error{
			Type:   ErrorModel,
			Title:  "invalid BPMN model",
			Detail: fmt.Sprintf("expected exactly one start event, but found %d", len(startEvents)),
		}
	}

	var causes []ErrorCause
	for _, sequenceFlow := range m.SequenceFlows {
		if sequenceFlow.Source == nil {
			causes = append(causes, ErrorCause{Pointer: sequenceFlow.Id, Detail: "sequence flow has an unresolved source"})
		}
		if sequenceFlow.Target == nil {
			causes = append(causes, ErrorCause{Pointer: sequenceFlow.Id, Detail: "sequence flow has an unresolved target"})
		}
	}
	if len(causes) != 0 {
		return nil, Error{
			Type:   ErrorModel,
			Title:  "invalid BPMN model",
			Detail: "sequence flows with unresolved endpoints",
			Causes: causes,
		}
	}

	unit := CompilationUnit{
		ContractName: input.ContractName,
		Participants: input.Participants,

		StartEvent: startEvents[0],
		EndEvents:  endEvents,
		Tasks:      m.Tasks(),
		Gateways:   m.Gateways(),

		SequenceFlows: m.SequenceFlows,
		MessageFlows:  m.MessageFlows,

		OperationNames: make(map[string]string),

		processToParticipant: make(map[string]string),
	}

	// intermediate catch events, including timer hosts
	for _, element := range m.Elements {
		if element.Type == model.ElementMessageCatchEvent || element.Type == model.ElementTimerCatchEvent {
			unit.IntermediateEvents = append(unit.IntermediateEvents, element)
		}
	}

	for _, participant := range m.Definitions.Participants {
		if participant.ProcessRef == "" {
			continue
		}
		if existing, ok := unit.processToParticipant[participant.ProcessRef]; ok {
			unit.warnf("process %s is referenced by multiple participants, using %q", participant.ProcessRef, existing)
			continue
		}
		unit.processToParticipant[participant.ProcessRef] = participant.NameOrId()

		if _, ok := input.AddressOf(participant.NameOrId()); !ok {
			return nil, Error{
				Type:   ErrorInvalidAddress,
				Title:  "missing participant address",
				Detail: fmt.Sprintf("no address supplied for participant %q", participant.NameOrId()),
			}
		}
	}

	for _, element := range m.ElementsByType(model.ElementTimerEventDefinition) {
		timerEventDefinition := element.Model.(model.TimerEventDefinition)

		blocks, warning := timerBlocks(element.Id, timerEventDefinition)
		if warning != "" {
			unit.warnf("%s", warning)
		}

		unit.Timers = append(unit.Timers, &Timer{
			Id:     element.Id,
			Name:   element.NameOrId(),
			Host:   timerEventDefinition.Host,
			Blocks: blocks,
		})
	}

	if err := unit.nameOperations(); err != nil {
		return nil, err
	}

	return &unit, nil
}

// DependenciesOf returns the source ids of all sequence flows targeting the element.
// Message flows are not counted as dependencies. Document order is preserved.
func (u *CompilationUnit) DependenciesOf(elementId string) []string {
	var dependencyIds []string
	for _, sequenceFlow := range u.SequenceFlows {
		if sequenceFlow.Target != nil && sequenceFlow.Target.Id == elementId && sequenceFlow.Source != nil {
			dependencyIds = append(dependencyIds, sequenceFlow.Source.Id)
		}
	}
	return dependencyIds
}

// BranchTargets returns the ids of the gateway's outgoing targets, labeled "Yes" and "No".
// An empty id denotes a branch without a continuation.
func (u *CompilationUnit) BranchTargets(gateway *model.Element) (yesTargetId string, noTargetId string) {
	for _, sequenceFlow := range u.SequenceFlows {
		if sequenceFlow.Source == nil || sequenceFlow.Source.Id != gateway.Id || sequenceFlow.Target == nil {
			continue
		}
		if strings.EqualFold(sequenceFlow.Name, "Yes") {
			yesTargetId = sequenceFlow.Target.Id
		} else if strings.EqualFold(sequenceFlow.Name, "No") {
			noTargetId = sequenceFlow.Target.Id
		}
	}
	for _, messageFlow := range u.MessageFlows {
		if messageFlow.Source == nil || messageFlow.Source.Id != gateway.Id || messageFlow.Target == nil {
			continue
		}
		if strings.EqualFold(messageFlow.Name, "Yes") {
			yesTargetId = messageFlow.Target.Id
		} else if strings.EqualFold(messageFlow.Name, "No") {
			noTargetId = messageFlow.Target.Id
		}
	}
	return yesTargetId, noTargetId
}

// ParticipantFor walks the element's containment chain upward and maps the
// enclosing process to its pool's display name.
func (u *CompilationUnit) ParticipantFor(element *model.Element) string {
	process := element.ProcessOf()
	if process == nil {
		return UnknownParticipant
	}
	if participantName, ok := u.processToParticipant[process.Id]; ok {
		return participantName
	}
	return UnknownParticipant
}

// TimerFor returns the timer identified by, or hosted by, the given element id.
func (u *CompilationUnit) TimerFor(elementId string) *Timer {
	for _, timer := range u.Timers {
		if timer.Id == elementId {
			return timer
		}
		if timer.Host != nil && timer.Host.Id == elementId {
			return timer
		}
	}
	return nil
}

// SequenceFlowsFrom returns all sequence flows with one of the given source ids, in document order.
func (u *CompilationUnit) SequenceFlowsFrom(sourceIds ...string) []*model.SequenceFlow {
	var sequenceFlows []*model.SequenceFlow
	for _, sequenceFlow := range u.SequenceFlows {
		if sequenceFlow.Source == nil || sequenceFlow.Target == nil {
			continue
		}
		for _, sourceId := range sourceIds {
			if sequenceFlow.Source.Id == sourceId {
				sequenceFlows = append(sequenceFlows, sequenceFlow)
				break
			}
		}
	}
	return sequenceFlows
}

// MessageFlowsFrom returns all message flows with one of the given source ids, in document order.
// Flows connecting a pool instead of a flow element are skipped.
func (u *CompilationUnit) MessageFlowsFrom(sourceIds ...string) []*model.MessageFlow {
	var messageFlows []*model.MessageFlow
	for _, messageFlow := range u.MessageFlows {
		if messageFlow.Source == nil || messageFlow.Target == nil {
			continue
		}
		for _, sourceId := range sourceIds {
			if messageFlow.Source.Id == sourceId {
				messageFlows = append(messageFlows, messageFlow)
				break
			}
		}
	}
	return messageFlows
}

// nameOperations derives and registers the operation name of every task,
// intermediate event and timer. Two elements sanitizing to the same name is a
// fatal error - the emitted contract would not compile.
func (u *CompilationUnit) nameOperations() error {
	registered := map[string]string{
		"startEvent":               "startEvent",
		"gatewayAction":            "gatewayAction",
		"updateParticipantAddress": "updateParticipantAddress",
		"pause":                    "pause",
		"unpause":                  "unpause",
		"resetElementState":        "resetElementState",
		"logAudit":                 "logAudit",
	}

	register := func(elementId string, operationName string, originalName string) error {
		if existing, ok := registered[operationName]; ok {
			return Error{
				Type:   ErrorNameCollision,
				Title:  "operation name collision",
				Detail: fmt.Sprintf("%q and %q both map to operation %s", existing, originalName, operationName),
			}
		}
		registered[operationName] = originalName
		u.OperationNames[elementId] = operationName
		return nil
	}

	for _, task := range u.Tasks {
		if err := register(task.Id, Sanitize(task.NameOrId()), task.NameOrId()); err != nil {
			return err
		}
	}
	for _, event := range u.IntermediateEvents {
		if err := register(event.Id, Sanitize(event.NameOrId()), event.NameOrId()); err != nil {
			return err
		}
	}
	for _, timer := range u.Timers {
		timer.TriggerName = "trigger" + capitalize(Sanitize(timer.Name))
		if existing, ok := registered[timer.TriggerName]; ok {
			return Error{
				Type:   ErrorNameCollision,
				Title:  "operation name collision",
				Detail: fmt.Sprintf("%q and %q both map to operation %s", existing, timer.Name, timer.TriggerName),
			}
		}
		registered[timer.TriggerName] = timer.Name
	}

	return nil
}

func (u *CompilationUnit) warnf(format string, args ...any) {
	u.Warnings = append(u.Warnings, fmt.Sprintf(format, args...))
}

// timerBlocks converts a timer payload into a block count.
// Only durations of the form PnD are supported; anything else falls back to 30 days.
func timerBlocks(timerId string, timerEventDefinition model.TimerEventDefinition) (int, string) {
	timeDuration := strings.TrimSpace(timerEventDefinition.TimeDuration)

	if match := timeDurationRegexp.FindStringSubmatch(timeDuration); match != nil {
		days, err := strconv.Atoi(match[1])
		if err == nil {
			return days * BlocksPerDay, ""
		}
	}

	var reason string
	switch {
	case timeDuration != "":
		reason = fmt.Sprintf("unsupported duration %q", timeDuration)
	case strings.TrimSpace(timerEventDefinition.TimeDate) != "":
		reason = "timeDate is not supported"
	case strings.TrimSpace(timerEventDefinition.TimeCycle) != "":
		timeCycle := strings.TrimSpace(timerEventDefinition.TimeCycle)
		if gronx.IsValid(timeCycle) {
			reason = fmt.Sprintf("timeCycle %q is a cron expression, which is not supported", timeCycle)
		} else {
			reason = "timeCycle is not supported"
		}
	default:
		reason = "no duration payload"
	}

	return FallbackBlocks, fmt.Sprintf("timer %s: %s, falling back to 30 days (%d blocks)", timerId, reason, FallbackBlocks)
}
