package model

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
)

func New(bpmnXmlReader io.Reader) (*Model, error) {
	var (
		definitions       Definitions
		definitionsParsed bool

		elements      []*Element
		sequenceFlows []*SequenceFlow
		messageFlows  []*MessageFlow

		element       *Element
		parentElement *Element
		timerHost     *Element

		isIncoming bool
		isOutgoing bool

		timerPayload string // local name of the currently open timer payload element
	)

	addElement := func() {
		if parentElement != nil {
			element.Parent = parentElement
			parentElement.Children = append(parentElement.Children, element)
		}

		elements = append(elements, element)
	}

	addNewElement := func(elementType ElementType, attributes []xml.Attr) {
		element = newElement(elementType, attributes)
		addElement()
	}

	sequenceFlowById := func(id string) *SequenceFlow {
		for _, sequenceFlow := range sequenceFlows {
			if sequenceFlow.Id == id {
				return sequenceFlow
			}
		}

		sequenceFlow := &SequenceFlow{Id: id}
		sequenceFlows = append(sequenceFlows, sequenceFlow)
		return sequenceFlow
	}

	decoder := xml.NewDecoder(bpmnXmlReader)

	count := 0
	for {
		token, err := decoder.Token()
		if token == nil || err == io.EOF {
			if count == 0 {
				return nil, errors.New("XML is empty")
			}
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode XML: %v", err)
		}

		count++

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "businessRuleTask":
				addNewElement(ElementBusinessRuleTask, t.Attr)
			case "definitions":
				definitions.Id = getAttrValue(t.Attr, "id")
				definitionsParsed = true
			case "endEvent":
				addNewElement(ElementNoneEndEvent, t.Attr)
			case "exclusiveGateway":
				addNewElement(ElementExclusiveGateway, t.Attr)
			case "inclusiveGateway":
				addNewElement(ElementInclusiveGateway, t.Attr)
			case "incoming":
				isIncoming = true
			case "intermediateCatchEvent":
				element = newElement(0, t.Attr) // unknown type
			case "manualTask":
				addNewElement(ElementManualTask, t.Attr)
			case "messageEventDefinition":
				if element != nil && element.Type == 0 {
					element.Type = ElementMessageCatchEvent
				}
			case "messageFlow":
				messageFlow := &MessageFlow{
					Id:   getAttrValue(t.Attr, "id"),
					Name: getAttrValue(t.Attr, "name"),
				}
				if sourceRef := getAttrValue(t.Attr, "sourceRef"); sourceRef != "" {
					messageFlow.Source = &Element{Id: sourceRef}
				}
				if targetRef := getAttrValue(t.Attr, "targetRef"); targetRef != "" {
					messageFlow.Target = &Element{Id: targetRef}
				}
				messageFlows = append(messageFlows, messageFlow)
			case "outgoing":
				isOutgoing = true
			case "parallelGateway":
				addNewElement(ElementParallelGateway, t.Attr)
			case "participant":
				definitions.Participants = append(definitions.Participants, &Participant{
					Id:         getAttrValue(t.Attr, "id"),
					Name:       getAttrValue(t.Attr, "name"),
					ProcessRef: getAttrValue(t.Attr, "processRef"),
				})
			case "process":
				isExecutable, _ := strconv.ParseBool(getAttrValue(t.Attr, "isExecutable"))

				addNewElement(ElementProcess, t.Attr)
				parentElement = element
				parentElement.Model = Process{IsExecutable: isExecutable}

				definitions.Processes = append(definitions.Processes, parentElement)
			case "scriptTask":
				addNewElement(ElementScriptTask, t.Attr)
			case "sendTask":
				addNewElement(ElementSendTask, t.Attr)
			case "sequenceFlow":
				sequenceFlow := sequenceFlowById(getAttrValue(t.Attr, "id"))
				if name := getAttrValue(t.Attr, "name"); name != "" {
					sequenceFlow.Name = name
				}
				if sourceRef := getAttrValue(t.Attr, "sourceRef"); sourceRef != "" && sequenceFlow.Source == nil {
					sequenceFlow.Source = &Element{Id: sourceRef}
				}
				if targetRef := getAttrValue(t.Attr, "targetRef"); targetRef != "" && sequenceFlow.Target == nil {
					sequenceFlow.Target = &Element{Id: targetRef}
				}
			case "serviceTask":
				addNewElement(ElementServiceTask, t.Attr)
			case "startEvent":
				addNewElement(ElementNoneStartEvent, t.Attr)
			case "task":
				addNewElement(ElementTask, t.Attr)
			case "timeCycle", "timeDate", "timeDuration":
				timerPayload = t.Name.Local
			case "timerEventDefinition":
				if element == nil {
					continue // definition outside of a catch event
				}
				if element.Type == 0 {
					element.Type = ElementTimerCatchEvent
				}

				timerHost = element

				element = newElement(ElementTimerEventDefinition, t.Attr)
				if element.Id == "" {
					element.Id = timerHost.Id
				}
				element.Model = TimerEventDefinition{Host: timerHost}
				addElement()
			case "userTask":
				addNewElement(ElementUserTask, t.Attr)
			default:
				element = nil
			}
		case xml.CharData:
			if element == nil {
				continue // skip unknown element
			} else if isIncoming {
				sequenceFlow := sequenceFlowById(string(t))
				sequenceFlow.Target = element
				element.Incoming = append(element.Incoming, sequenceFlow)
			} else if isOutgoing {
				sequenceFlow := sequenceFlowById(string(t))
				sequenceFlow.Source = element
				element.Outgoing = append(element.Outgoing, sequenceFlow)
			} else if timerPayload != "" && element.Type == ElementTimerEventDefinition {
				timerEventDefinition := element.Model.(TimerEventDefinition)
				switch timerPayload {
				case "timeCycle":
					timerEventDefinition.TimeCycle += string(t)
				case "timeDate":
					timerEventDefinition.TimeDate += string(t)
				case "timeDuration":
					timerEventDefinition.TimeDuration += string(t)
				}
				element.Model = timerEventDefinition
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "incoming":
				isIncoming = false
			case "intermediateCatchEvent":
				if element != nil && element.Type != 0 { // add element, if type is known
					addElement()
				}
			case "outgoing":
				isOutgoing = false
			case "timeCycle", "timeDate", "timeDuration":
				timerPayload = ""
			case "timerEventDefinition":
				element = timerHost // continue with the enclosing catch event
				timerHost = nil
			}
		}
	}

	if !definitionsParsed {
		return nil, errors.New("no definitions found")
	}

	model := Model{
		Definitions: &definitions,

		Elements:      elements,
		SequenceFlows: sequenceFlows,
		MessageFlows:  messageFlows,
	}

	// resolve sourceRef/targetRef placeholders
	for _, sequenceFlow := range model.SequenceFlows {
		if source := model.resolve(sequenceFlow.Source); source != sequenceFlow.Source {
			sequenceFlow.Source = source
			if source != nil && !containsSequenceFlow(source.Outgoing, sequenceFlow.Id) {
				source.Outgoing = append(source.Outgoing, sequenceFlow)
			}
		}
		if target := model.resolve(sequenceFlow.Target); target != sequenceFlow.Target {
			sequenceFlow.Target = target
			if target != nil && !containsSequenceFlow(target.Incoming, sequenceFlow.Id) {
				target.Incoming = append(target.Incoming, sequenceFlow)
			}
		}
	}
	for _, messageFlow := range model.MessageFlows {
		messageFlow.Source = model.resolve(messageFlow.Source)
		messageFlow.Target = model.resolve(messageFlow.Target)
	}

	return &model, nil
}

type Model struct {
	Definitions *Definitions

	Elements      []*Element
	SequenceFlows []*SequenceFlow
	MessageFlows  []*MessageFlow
}

// ElementById returns the element with the given id, or nil, if no such element exists.
func (m *Model) ElementById(id string) *Element {
	for _, element := range m.Elements {
		if element.Id == id {
			return element
		}
	}
	return nil
}

// ElementsByType returns all elements of the given type, preserving document order.
func (m *Model) ElementsByType(elementType ElementType) []*Element {
	var elements []*Element
	for _, element := range m.Elements {
		if element.Type == elementType {
			elements = append(elements, element)
		}
	}
	return elements
}

// Gateways returns all gateway elements, preserving document order.
func (m *Model) Gateways() []*Element {
	var elements []*Element
	for _, element := range m.Elements {
		if element.Type.IsGateway() {
			elements = append(elements, element)
		}
	}
	return elements
}

// ProcessById returns the process with the given id, or nil, if no such process exists.
func (m *Model) ProcessById(id string) *Element {
	for i := range m.Definitions.Processes {
		if m.Definitions.Processes[i].Id == id {
			return m.Definitions.Processes[i]
		}
	}
	return nil
}

// Tasks returns all task elements, preserving document order.
func (m *Model) Tasks() []*Element {
	var elements []*Element
	for _, element := range m.Elements {
		if element.Type.IsTask() {
			elements = append(elements, element)
		}
	}
	return elements
}

// resolve maps a placeholder, holding only an element id, to the parsed element.
// If no such element exists, nil is returned.
func (m *Model) resolve(placeholder *Element) *Element {
	if placeholder == nil || placeholder.Type != 0 {
		return placeholder
	}
	return m.ElementById(placeholder.Id)
}

type Definitions struct {
	Id string

	Participants []*Participant
	Processes    []*Element
}

// Participant is a pool of a collaboration, linking to its process via ProcessRef.
type Participant struct {
	Id         string
	Name       string
	ProcessRef string
}

// NameOrId returns the participant's display name, or its id, if no name is set.
func (p *Participant) NameOrId() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Id
}

type SequenceFlow struct {
	Id     string
	Name   string
	Source *Element
	Target *Element
}

// MessageFlow is a communication edge between elements of different processes.
// Source or Target is nil, if the flow connects a pool instead of a flow element.
type MessageFlow struct {
	Id     string
	Name   string
	Source *Element
	Target *Element
}

func containsSequenceFlow(sequenceFlows []*SequenceFlow, id string) bool {
	for i := range sequenceFlows {
		if sequenceFlows[i].Id == id {
			return true
		}
	}
	return false
}

func getAttrValue(attributes []xml.Attr, name string) string {
	for i := range attributes {
		if attributes[i].Name.Local == name {
			return attributes[i].Value
		}
	}
	return ""
}

func newElement(elementType ElementType, attributes []xml.Attr) *Element {
	return &Element{
		Id:   getAttrValue(attributes, "id"),
		Name: getAttrValue(attributes, "name"),
		Type: elementType,
	}
}
