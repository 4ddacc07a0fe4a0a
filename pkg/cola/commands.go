// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cola

import (
	"strconv"
	"strings"
)

// Command builders return telegram payloads ready for Frame. They only format
// strings; see the SICK telegram listing for the meaning of each variable.

// Variable names (sRN / sWN)
const (
	VarFirmwareVersion = "FirmwareVersion"
	VarScanConfig      = "LMPscancfg"
	VarScanData        = "LMDscandata"
	VarScanDataConfig  = "LMDscandatacfg"
	VarOutputRange     = "LMPoutputRange"
	VarParticleFilter  = "LFPparticle"
	VarMeanFilter      = "LFPmeanfilter"
	VarOutputState     = "LIDoutputstate"
	VarDebounceTime    = "DI3DebTim"
	VarDeviceIdent     = "DeviceIdent"
	VarDeviceState     = "SCdevicestate"
	VarOrderNumber     = "DIornr"
	VarDeviceType      = "DItype"
	VarOperatingHours  = "ODoprh"
	VarPowerOnCounter  = "ODpwrc"
	VarLocationName    = "LocationName"
)

// Method names (sMN)
const (
	MethodSetAccessMode      = "SetAccessMode"
	MethodStartMeasurement   = "LMCstartmeas"
	MethodStopMeasurement    = "LMCstopmeas"
	MethodLoadFactoryDefault = "mSCloadfacdef"
	MethodLoadAppDefault     = "mSCloadappdef"
	MethodCheckPassword      = "CheckPassword"
	MethodReboot             = "mSCreboot"
	MethodWriteAll           = "mEEwriteall"
	MethodRun                = "Run"
	MethodSetOutput          = "mDOSetOutput"
	MethodResetOutputCounter = "LIDrstoutpcnt"
)

// User levels for SetAccessMode
const (
	UserLevelMaintenance      = "02"
	UserLevelAuthorizedClient = "03"
	UserLevelService          = "04"
)

// Factory passwords per user level
const (
	PasswordMaintenance      = "B21ACE26"
	PasswordAuthorizedClient = "F4724744"
	PasswordService          = "81BE23AA"
)

func build(prefix, name string, args []string) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, prefix, name)
	parts = append(parts, args...)
	return strings.Join(parts, " ")
}

// ReadVariable builds an sRN telegram
func ReadVariable(name string, args ...string) string {
	return build(PrefixRead, name, args)
}

// WriteVariable builds an sWN telegram
func WriteVariable(name string, args ...string) string {
	return build(PrefixWrite, name, args)
}

// InvokeMethod builds an sMN telegram
func InvokeMethod(name string, args ...string) string {
	return build(PrefixMethod, name, args)
}

// RegisterEvent builds an sEN telegram. Only the registration answer is
// handled; event data delivery is not.
func RegisterEvent(name string, args ...string) string {
	return build(PrefixEvent, name, args)
}

// SetAccessMode builds the login telegram for a user level
func SetAccessMode(level, password string) string {
	return InvokeMethod(MethodSetAccessMode, level, password)
}

// CheckPassword builds a password check telegram
func CheckPassword(level, password string) string {
	return InvokeMethod(MethodCheckPassword, level, password)
}

// SetLocationName builds the LocationName write, e.g.
// "sWN LocationName +13 OutdoorDevice"
func SetLocationName(name string) string {
	return WriteVariable(VarLocationName, "+"+strconv.Itoa(len(name)), name)
}

// MeanFilter builds the LFPmeanfilter write. scans is a signed CoLa-A
// decimal such as "+10".
func MeanFilter(status, scans string) string {
	return WriteVariable(VarMeanFilter, status, scans, "0")
}

// Tokens splits a payload on whitespace
func Tokens(payload string) []string {
	return strings.Fields(payload)
}

// LastToken returns the last whitespace-delimited token, or "" if none
func LastToken(payload string) string {
	tokens := strings.Fields(payload)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

// AnswerPrefix returns the answer prefix a device uses for a command prefix
func AnswerPrefix(commandPrefix string) string {
	switch commandPrefix {
	case PrefixRead:
		return PrefixReadAnswer
	case PrefixWrite:
		return PrefixWriteAnswer
	case PrefixMethod:
		return PrefixMethodAnswer
	case PrefixEvent:
		return PrefixEventAnswer
	}
	return ""
}

// IsAnswerTo reports whether payload answers command: the answer prefix
// matches the command kind and the second token names the same variable or
// method.
func IsAnswerTo(payload, command string) bool {
	cmd := Tokens(command)
	ans := Tokens(payload)
	if len(cmd) < 2 || len(ans) < 2 {
		return false
	}
	return ans[0] == AnswerPrefix(cmd[0]) && ans[1] == cmd[1]
}
