package main

import (
	"errors"

	"github.com/rpggio/qms/internal/domain/document"
	cli "github.com/urfave/cli/v3"
)

// Process exit codes.
const (
	exitGeneric    = 1
	exitPermission = 2
	exitRefused    = 3
	exitNotFound   = 4
	exitConflict   = 5
)

var exitCodes = map[string]int{
	document.KindPermissionDenied:   exitPermission,
	document.KindTransitionNotFound: exitRefused,
	document.KindApprovalGate:       exitRefused,
	document.KindInvalidCategory:    exitRefused,
	document.KindInvalidState:       exitRefused,
	document.KindCheckoutConflict:   exitRefused,
	document.KindNotFound:           exitNotFound,
	document.KindConflict:           exitConflict,
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	if code, ok := exitCodes[document.ErrorKind(err)]; ok {
		return code
	}
	return exitGeneric
}
