package io

import "strings"

const (
	OutputActuatorAliasName        = "output"
	ScalarOutputActuatorAliasName  = "scalar_output"
	WinnerTakeAllActuatorAliasName = "winner_take_all"
	WTAActuatorAliasName           = "wta"
)

var actuatorAliasToCanonical = map[string]string{
	OutputActuatorAliasName:        RecorderActuatorName,
	ScalarOutputActuatorAliasName:  RecorderActuatorName,
	WinnerTakeAllActuatorAliasName: WinnerActuatorName,
	WTAActuatorAliasName:           WinnerActuatorName,
}

func CanonicalActuatorName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := actuatorAliasToCanonical[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}
