package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit builds the error a command returns to terminate with code.
func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}
