package compiler

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	RegexpContractName = regexp.MustCompile("^[A-Za-z_][A-Za-z0-9_]*$")
	RegexpEthAddress   = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")

	validate = newValidate()
)

func newValidate() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterValidation("contract_name", func(fl validator.FieldLevel) bool {
		return RegexpContractName.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("eth_address", func(fl validator.FieldLevel) bool {
		return RegexpEthAddress.MatchString(fl.Field().String())
	})

	return validate
}

// ParticipantAddress maps a participant's display name to an Ethereum address.
type ParticipantAddress struct {
	Name    string `validate:"required"`
	Address string `validate:"eth_address"`
}

// Input bundles the user-supplied compilation inputs.
// Participants must be ordered as the pools appear in the BPMN document.
type Input struct {
	ContractName string               `validate:"contract_name"`
	Participants []ParticipantAddress `validate:"dive"`
}

// AddressOf returns the address for a participant display name.
func (in Input) AddressOf(participantName string) (string, bool) {
	for _, participant := range in.Participants {
		if participant.Name == participantName {
			return participant.Address, true
		}
	}
	return "", false
}

func (in Input) Validate() error {
	if err := validate.Var(in.ContractName, "contract_name"); err != nil {
		return Error{
			Type:   ErrorInvalidContractName,
			Title:  "invalid contract name",
			Detail: fmt.Sprintf("name %q must start with a letter or underscore and contain only letters, numbers, or underscores", in.ContractName),
		}
	}

	for _, participant := range in.Participants {
		if err := validate.Struct(participant); err != nil {
			return Error{
				Type:   ErrorInvalidAddress,
				Title:  "invalid Ethereum address",
				Detail: fmt.Sprintf("participant %q: address %q must match 0x followed by 40 hex digits", participant.Name, participant.Address),
			}
		}
	}

	return nil
}
