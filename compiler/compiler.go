package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gclaussn/bpmn-sol/model"
)

// Compile derives the compilation unit from a parsed BPMN model and emits the
// Solidity contract source. Compiling the same model and input twice produces
// byte-identical output.
func Compile(m *model.Model, input Input) (*Artifact, error) {
	unit, err := NewCompilationUnit(m, input)
	if err != nil {
		return nil, err
	}

	for _, task := range unit.Tasks {
		if unit.ParticipantFor(task) == UnknownParticipant {
			unit.warnf("element %s cannot be traced to a pool, using the %s sentinel", task.Id, UnknownParticipant)
		}
	}
	for _, event := range unit.IntermediateEvents {
		if unit.ParticipantFor(event) == UnknownParticipant {
			unit.warnf("element %s cannot be traced to a pool, using the %s sentinel", event.Id, UnknownParticipant)
		}
	}
	for _, gateway := range unit.Gateways {
		if unit.ParticipantFor(gateway) == UnknownParticipant {
			unit.warnf("element %s cannot be traced to a pool, using the %s sentinel", gateway.Id, UnknownParticipant)
		}
	}

	source := emit(unit)

	artifact := Artifact{
		ContractName: unit.ContractName,
		Source:       source,
		Warnings:     unit.Warnings,
	}

	if strings.Count(source, "SPDX-License-Identifier") > 1 {
		artifact.Warnings = append(artifact.Warnings, "multiple SPDX identifiers found")
	}

	return &artifact, nil
}

// Artifact is an emitted contract source, not yet written to disk.
type Artifact struct {
	ContractName string
	Source       string
	Warnings     []string
}

// FileName returns the name of the contract source file.
func (a *Artifact) FileName() string {
	return a.ContractName + ".sol"
}

// WriteFile writes the contract source into the given directory and returns
// the file path. A partially written file is removed.
func (a *Artifact) WriteFile(dir string) (string, error) {
	filePath := filepath.Join(dir, a.FileName())

	if err := os.WriteFile(filePath, []byte(a.Source), 0o644); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to write contract file %s: %v", filePath, err)
	}

	return filePath, nil
}
