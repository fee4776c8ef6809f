package compiler

import (
	"os"
	"testing"

	"github.com/gclaussn/bpmn-sol/model"
)

const (
	buyerAddress    = "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"
	sellerAddress   = "0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2"
	operatorAddress = "0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db"
)

func mustCreateModel(t *testing.T, fileName string) *model.Model {
	fileName = "../test/bpmn/" + fileName

	bpmnFile, err := os.Open(fileName)
	if err != nil {
		t.Fatalf("failed to open BPMN file %s: %v", fileName, err)
	}

	defer bpmnFile.Close()

	m, err := model.New(bpmnFile)
	if err != nil {
		t.Fatalf("failed to parse BPMN XML: %v", err)
	}

	return m
}
