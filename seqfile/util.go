package seqfile

import "fmt"

func fmtArgs(args ...interface{}) string {
	if len(args) == 0 {
		return ""
	}
	format := args[0].(string)
	if len(args) == 1 {
		return format
	}
	return fmt.Sprintf(format, args[1:]...)
}

func panicIf(cond bool, args ...interface{}) {
	if !cond {
		return
	}
	s := fmtArgs(args...)
	if s == "" {
		s = "fatalIf: condition failed"
	}
	panic(s)
}
