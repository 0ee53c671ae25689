package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Bundle and project loading
	IOInfo          Code = 4000
	IOLoadBundle    Code = 4001
	IOSchemaVersion Code = 4002
	IOWriteOutput   Code = 4003
	IOCacheCorrupt  Code = 4004

	ProjInfo          Code = 5000
	ProjConfigInvalid Code = 5001
	ProjNoEntry       Code = 5002

	// Monomorphization
	MonoInfo               Code = 9000
	MonoNonExhaustive      Code = 9001
	MonoRedundantBranch    Code = 9002
	MonoUnsupportedPattern Code = 9003
	MonoErroneousLayout    Code = 9004
	MonoUnknownSymbol      Code = 9005
	MonoEntryNotConcrete   Code = 9006
	MonoInternal           Code = 9007

	// Runtime checks from the interpreter
	RunInfo         Code = 9500
	RunLeak         Code = 9501
	RunDoubleFree   Code = 9502
	RunUseAfterFree Code = 9503
	RunAbort        Code = 9504
	RunStepLimit    Code = 9505
)

var (
	codeDescription = map[Code]string{
		UnknownCode:            "Unknown error",
		IOInfo:                 "I/O information",
		IOLoadBundle:           "Cannot load bundle",
		IOSchemaVersion:        "Bundle schema version mismatch",
		IOWriteOutput:          "Cannot write output",
		IOCacheCorrupt:         "Cache entry is corrupt",
		ProjInfo:               "Project information",
		ProjConfigInvalid:      "Invalid monoc.toml",
		ProjNoEntry:            "Module exposes no entry",
		MonoInfo:               "Specialization information",
		MonoNonExhaustive:      "Pattern match is not exhaustive",
		MonoRedundantBranch:    "Branch can never match",
		MonoUnsupportedPattern: "Pattern is not supported here",
		MonoErroneousLayout:    "Type has no layout",
		MonoUnknownSymbol:      "Reference to an unknown definition",
		MonoEntryNotConcrete:   "Entry point is polymorphic",
		MonoInternal:           "Internal specialization defect",
		RunInfo:                "Runtime information",
		RunLeak:                "Allocation leaked",
		RunDoubleFree:          "Allocation freed twice",
		RunUseAfterFree:        "Use of freed allocation",
		RunAbort:               "Program aborted",
		RunStepLimit:           "Step limit exceeded",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 9000 && ic < 9500:
		return fmt.Sprintf("MONO%04d", ic)
	case ic >= 9500 && ic < 10000:
		return fmt.Sprintf("RUN%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
